package handler

import (
	"net/http"
	"time"

	"media-forge/app/auth"
	"media-forge/app/config"
	"media-forge/app/database"
	"media-forge/app/model"
	"media-forge/app/utils"

	"github.com/gin-gonic/gin"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	config     *config.Config
	jwtService *auth.JWTService
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		config:     cfg,
		jwtService: auth.NewJWTService(cfg),
	}
}

// LoginRequest 登录请求结构
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应结构
type LoginResponse struct {
	Token    string      `json:"token"`
	User     *model.User `json:"user"`
	ExpireAt int64       `json:"expire_at"`
}

// Login 管理员登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 400, "请求参数错误: "+err.Error())
		return
	}

	// 查找用户
	var user model.User
	db := database.GetDB()
	if err := db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		fail(c, http.StatusUnauthorized, 401, "用户名或密码错误")
		return
	}

	// 验证密码
	if !utils.VerifyPassword(req.Password, user.Password) {
		fail(c, http.StatusUnauthorized, 401, "用户名或密码错误")
		return
	}

	if !user.IsActive {
		fail(c, http.StatusForbidden, 403, "用户账号已被禁用")
		return
	}

	// 生成JWT token
	token, err := h.jwtService.GenerateToken(user.ID, user.Username)
	if err != nil {
		fail(c, http.StatusInternalServerError, 500, "生成令牌失败")
		return
	}

	// 更新最后登录时间
	now := time.Now()
	user.LastLogin = &now
	db.Save(&user)

	success(c, LoginResponse{
		Token:    token,
		User:     &user,
		ExpireAt: time.Now().Add(time.Duration(h.config.JWT.ExpireTime) * time.Hour).Unix(),
	}, "登录成功")
}
