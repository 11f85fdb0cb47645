package handler

import (
	"net/http"
	"time"

	"media-forge/app/formats"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

const formatsCacheKey = "formats:all"

// FormatTableResponse 单个媒体类型的格式描述
type FormatTableResponse struct {
	Formats     []string            `json:"formats"`
	Conversions map[string][]string `json:"conversions"`
}

// FormatsHandler 格式发现接口，供前端在提交前限制可选格式
type FormatsHandler struct {
	cache *cache.Cache
}

// NewFormatsHandler 创建格式发现处理器
func NewFormatsHandler() *FormatsHandler {
	return &FormatsHandler{
		cache: cache.New(5*time.Minute, 10*time.Minute),
	}
}

// GetFormats 返回各媒体类型支持的格式与合法转换表
func (h *FormatsHandler) GetFormats(c *gin.Context) {
	if cached, ok := h.cache.Get(formatsCacheKey); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	payload := map[string]FormatTableResponse{}
	for _, mt := range []formats.MediaType{formats.MediaImage, formats.MediaVideo, formats.MediaAudio, formats.MediaDocument} {
		payload[string(mt)] = FormatTableResponse{
			Formats:     formats.SupportedFormats(mt),
			Conversions: formats.ConversionTable(mt),
		}
	}

	h.cache.Set(formatsCacheKey, payload, cache.DefaultExpiration)
	c.JSON(http.StatusOK, payload)
}
