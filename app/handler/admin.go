package handler

import (
	"net/http"
	"strconv"
	"time"

	"media-forge/app/logger"
	"media-forge/app/model"
	"media-forge/app/service"

	"github.com/gin-gonic/gin"
)

// AdminHandler 管理端接口：队列状态、手动清理与任务历史
type AdminHandler struct {
	logger     *logger.Logger
	imageQueue *service.ConversionQueue
	mediaQueue *service.ConversionQueue
	cleanupSvc *service.CleanupService
	historySvc *service.HistoryService
}

// NewAdminHandler 创建管理端处理器
func NewAdminHandler(log *logger.Logger, imageQueue, mediaQueue *service.ConversionQueue,
	cleanupSvc *service.CleanupService, historySvc *service.HistoryService) *AdminHandler {
	return &AdminHandler{
		logger:     log,
		imageQueue: imageQueue,
		mediaQueue: mediaQueue,
		cleanupSvc: cleanupSvc,
		historySvc: historySvc,
	}
}

// GetQueues 返回各队列按状态统计的任务数量
func (h *AdminHandler) GetQueues(c *gin.Context) {
	success(c, gin.H{
		"image": countsResponse(h.imageQueue.Counts()),
		"media": countsResponse(h.mediaQueue.Counts()),
	}, "查询成功")
}

// Cleanup 手动触发一次清理。可选参数 max_age_seconds 覆盖默认保留时长。
func (h *AdminHandler) Cleanup(c *gin.Context) {
	if raw := c.Query("max_age_seconds"); raw != "" {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || seconds < 0 {
			fail(c, http.StatusBadRequest, 400, "max_age_seconds 参数无效")
			return
		}
		h.cleanupSvc.RunWithMaxAge(time.Duration(seconds) * time.Second)
	} else {
		h.cleanupSvc.RunOnce()
	}

	h.logger.Info("手动触发任务清理")
	success(c, nil, "清理完成")
}

// GetHistory 返回最近的终态任务历史
func (h *AdminHandler) GetHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	entries, total, err := h.historySvc.Recent(limit, offset)
	if err != nil {
		h.logger.Errorf("查询任务历史失败: %v", err)
		fail(c, http.StatusInternalServerError, 500, "查询任务历史失败")
		return
	}

	success(c, gin.H{"total": total, "items": entries}, "查询成功")
}

// countsResponse 将状态计数转成以状态名为键的映射
func countsResponse(counts map[model.JobStatus]int) map[string]int {
	out := make(map[string]int, len(counts))
	for status, n := range counts {
		out[string(status)] = n
	}
	return out
}
