package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"media-forge/app/formats"
	"media-forge/app/logger"
	"media-forge/app/model"
	"media-forge/app/service"

	"github.com/gin-gonic/gin"
)

// ConvertHandler 处理转换任务的提交、查询与下载
type ConvertHandler struct {
	logger     *logger.Logger
	imageQueue *service.ConversionQueue
	mediaQueue *service.ConversionQueue
}

// NewConvertHandler 创建转换处理器
func NewConvertHandler(log *logger.Logger, imageQueue, mediaQueue *service.ConversionQueue) *ConvertHandler {
	return &ConvertHandler{
		logger:     log,
		imageQueue: imageQueue,
		mediaQueue: mediaQueue,
	}
}

// SubmitResponse 提交任务的响应
type SubmitResponse struct {
	JobID string `json:"jobId"`
}

// StatusResponse 任务状态查询的响应
type StatusResponse struct {
	ID           string            `json:"id"`
	Status       model.JobStatus   `json:"status"`
	OriginalName string            `json:"originalName"`
	InputFormat  string            `json:"inputFormat"`
	OutputFormat string            `json:"outputFormat"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	Result       *model.JobResult  `json:"result,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// ConvertImage 提交图片转换任务
// 接收 multipart 表单：file（图片文件）、outputFormat（目标格式）、
// 可选 callback_url（完成回调地址）
func (h *ConvertHandler) ConvertImage(c *gin.Context) {
	fileHeader, outputFormat, ok := h.submissionFields(c)
	if !ok {
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		fail(c, http.StatusBadRequest, 400, "请上传图片文件")
		return
	}
	inputFormat := formats.Normalize(strings.TrimPrefix(contentType, "image/"))

	if !formats.IsSupported(formats.MediaImage, outputFormat) {
		fail(c, http.StatusBadRequest, 400, "不支持的输出格式: "+outputFormat)
		return
	}
	if !legalConversion(formats.MediaImage, inputFormat, outputFormat) {
		fail(c, http.StatusBadRequest, 400, "不支持从 "+inputFormat+" 转换为 "+outputFormat)
		return
	}

	payload, err := readUpload(fileHeader)
	if err != nil {
		h.logger.Errorf("读取上传文件失败: %v", err)
		fail(c, http.StatusInternalServerError, 500, "读取上传文件失败")
		return
	}

	jobID, err := h.imageQueue.AddJob(payload, fileHeader.Filename, inputFormat, outputFormat,
		formats.MediaImage, c.PostForm("callback_url"))
	if err != nil {
		fail(c, http.StatusBadRequest, 400, err.Error())
		return
	}

	success(c, SubmitResponse{JobID: jobID}, "图片转换任务已加入队列")
}

// ConvertMedia 提交音视频转换任务
func (h *ConvertHandler) ConvertMedia(c *gin.Context) {
	fileHeader, outputFormat, ok := h.submissionFields(c)
	if !ok {
		return
	}

	mediaType, inputFormat, ok := detectMediaInput(fileHeader)
	if !ok {
		fail(c, http.StatusBadRequest, 400, "请上传视频或音频文件")
		return
	}
	if inputFormat == "" {
		fail(c, http.StatusBadRequest, 400, "无法识别输入格式")
		return
	}

	if !formats.IsMediaSupported(outputFormat) {
		fail(c, http.StatusBadRequest, 400, "不支持的输出格式: "+outputFormat)
		return
	}
	if !legalConversion(mediaType, inputFormat, outputFormat) {
		fail(c, http.StatusBadRequest, 400, "不支持从 "+inputFormat+" 转换为 "+outputFormat)
		return
	}

	payload, err := readUpload(fileHeader)
	if err != nil {
		h.logger.Errorf("读取上传文件失败: %v", err)
		fail(c, http.StatusInternalServerError, 500, "读取上传文件失败")
		return
	}

	jobID, err := h.mediaQueue.AddJob(payload, fileHeader.Filename, inputFormat, outputFormat,
		mediaType, c.PostForm("callback_url"))
	if err != nil {
		fail(c, http.StatusBadRequest, 400, err.Error())
		return
	}

	success(c, SubmitResponse{JobID: jobID}, "转换任务已加入队列")
}

// Status 查询任务状态。终态任务附带结果或错误信息。
func (h *ConvertHandler) Status(c *gin.Context) {
	jobID := c.Query("jobId")
	if jobID == "" {
		fail(c, http.StatusBadRequest, 400, "缺少 jobId 参数")
		return
	}

	queue := h.imageQueue
	switch c.DefaultQuery("type", "image") {
	case "video", "audio":
		queue = h.mediaQueue
	}

	job, ok := queue.GetJob(jobID)
	if !ok {
		fail(c, http.StatusNotFound, 404, "任务不存在")
		return
	}

	resp := StatusResponse{
		ID:           job.ID,
		Status:       job.Status,
		OriginalName: job.OriginalName,
		InputFormat:  job.InputFormat,
		OutputFormat: job.OutputFormat,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
	switch job.Status {
	case model.JobStatusCompleted:
		resp.Result = job.Result
	case model.JobStatusFailed:
		resp.Error = job.Error
	}

	c.JSON(http.StatusOK, resp)
}

// Download 下载音视频转换结果文件
func (h *ConvertHandler) Download(c *gin.Context) {
	jobID := c.Query("id")
	filename := c.Query("filename")
	if jobID == "" || filename == "" {
		fail(c, http.StatusBadRequest, 400, "缺少必要参数")
		return
	}

	job, ok := h.mediaQueue.GetJob(jobID)
	if !ok || job.Status != model.JobStatusCompleted || job.Result == nil {
		fail(c, http.StatusNotFound, 404, "文件不存在或转换尚未完成")
		return
	}
	// 只允许下载该任务自己的输出文件
	if job.Result.Filename != filename || job.Result.LocalPath == "" {
		fail(c, http.StatusNotFound, 404, "文件不存在")
		return
	}

	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	c.Header("Content-Type", formats.MimeType(ext))
	c.FileAttachment(job.Result.LocalPath, filename)
}

// submissionFields 提取提交表单的公共字段并做基础校验
func (h *ConvertHandler) submissionFields(c *gin.Context) (*multipart.FileHeader, string, bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, 400, "未提供文件")
		return nil, "", false
	}

	outputFormat := formats.Normalize(c.PostForm("outputFormat"))
	if outputFormat == "" {
		fail(c, http.StatusBadRequest, 400, "未指定输出格式")
		return nil, "", false
	}
	return fileHeader, outputFormat, true
}

// detectMediaInput 根据 Content-Type 识别媒体类型和输入格式，
// Content-Type 缺失时回退到文件扩展名
func detectMediaInput(fileHeader *multipart.FileHeader) (formats.MediaType, string, bool) {
	contentType := fileHeader.Header.Get("Content-Type")

	var mediaType formats.MediaType
	switch {
	case strings.HasPrefix(contentType, "video/"):
		mediaType = formats.MediaVideo
	case strings.HasPrefix(contentType, "audio/"):
		mediaType = formats.MediaAudio
	}
	if mediaType != "" {
		// 优先把 MIME 归一为规范扩展名，反查不到的子类型按字面使用
		if ext, ok := formats.ExtensionByMime(contentType); ok {
			return mediaType, ext, true
		}
		subtype := contentType[strings.Index(contentType, "/")+1:]
		if i := strings.Index(subtype, ";"); i >= 0 {
			subtype = subtype[:i]
		}
		return mediaType, formats.Normalize(subtype), true
	}

	// 回退到扩展名
	ext := formats.Normalize(filepath.Ext(fileHeader.Filename))
	if formats.IsSupported(formats.MediaVideo, ext) {
		return formats.MediaVideo, ext, true
	}
	if formats.IsSupported(formats.MediaAudio, ext) {
		return formats.MediaAudio, ext, true
	}
	return "", "", false
}

// legalConversion 按转换表校验输入到输出的组合。
// 转换表未收录的输入格式交给执行阶段判定，不在提交时拦截。
func legalConversion(mediaType formats.MediaType, inputFormat, outputFormat string) bool {
	outputs := formats.LegalOutputs(mediaType, inputFormat)
	if outputs == nil {
		return true
	}
	for _, f := range outputs {
		if f == outputFormat {
			return true
		}
	}
	return false
}

// readUpload 读取上传文件的全部内容
func readUpload(fileHeader *multipart.FileHeader) ([]byte, error) {
	f, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
