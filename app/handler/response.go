package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// success 写入统一成功响应
func success(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, ApiResponse{
		Code:    0,
		Message: message,
		Data:    data,
	})
}

// fail 写入统一错误响应
func fail(c *gin.Context, statusCode int, errorCode int, message string) {
	c.JSON(statusCode, ApiResponse{
		Code:    errorCode,
		Message: message,
		Data:    nil,
	})
}
