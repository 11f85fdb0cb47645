package server

import (
	"context"
	"net/http"
	"os"
	"time"

	"media-forge/app/config"
	"media-forge/app/converter"
	"media-forge/app/database"
	"media-forge/app/formats"
	"media-forge/app/handler"
	"media-forge/app/logger"
	"media-forge/app/middleware"
	"media-forge/app/model"
	"media-forge/app/service"

	"github.com/gin-gonic/gin"
)

// Server 表示 HTTP 服务器及其持有的后台服务
type Server struct {
	Config *config.Config
	Logger *logger.Logger
	gin    *gin.Engine
	http   *http.Server

	imageQueue *service.ConversionQueue
	mediaQueue *service.ConversionQueue
	cleanupSvc *service.CleanupService
	notifier   *service.Notifier
	historySvc *service.HistoryService
}

// New 创建 Server 实例并完成全部装配。
// 两个队列在进程启动时各构造一份，通过引用注入各处理器。
func New(cfg *config.Config, log *logger.Logger) (*Server, error) {
	if err := os.MkdirAll(cfg.Convert.TempDir, 0755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Convert.OutputDir, 0755); err != nil {
		return nil, err
	}

	notifier := service.NewNotifier(log, time.Duration(cfg.Convert.CallbackTimeout)*time.Second)
	historySvc := service.NewHistoryService(log, database.GetDB())

	// 任务进入终态后：落历史库、推送回调
	onTerminal := func(job model.Job) {
		historySvc.Record(job)
		notifier.NotifyTerminal(job)
	}

	imageQueue := service.NewConversionQueue(service.QueueConfig{
		Name:    "image",
		Backend: service.NewImageBackend(converter.NewImageConverter(), cfg.Convert.InlineLimit),
		Validate: func(outputFormat string) bool {
			return formats.IsSupported(formats.MediaImage, outputFormat)
		},
		OnTerminal: onTerminal,
	}, log)

	ffmpeg := converter.NewFFmpegConverter(cfg.Convert.FFmpegPath, cfg.Convert.FFprobePath)
	mediaQueue := service.NewConversionQueue(service.QueueConfig{
		Name:         "media",
		Backend:      service.NewMediaBackend(ffmpeg, cfg.Convert.OutputDir),
		Validate:     formats.IsMediaSupported,
		PersistInput: true,
		TempDir:      cfg.Convert.TempDir,
		OnTerminal:   onTerminal,
	}, log)

	cleanupSvc := service.NewCleanupService(log, cfg.Convert.Retention(), cfg.Convert.CleanupSpec,
		imageQueue, mediaQueue)

	router := gin.Default()
	router.MaxMultipartMemory = cfg.Server.MaxBody

	s := &Server{
		Config: cfg,
		Logger: log,
		gin:    router,
		http: &http.Server{
			Addr:    ":" + cfg.Server.Port,
			Handler: router,
		},
		imageQueue: imageQueue,
		mediaQueue: mediaQueue,
		cleanupSvc: cleanupSvc,
		notifier:   notifier,
		historySvc: historySvc,
	}

	// 设置路由
	s.setupRoutes()

	return s, nil
}

// Start 启动队列、清理服务和 HTTP 服务器
func (s *Server) Start() error {
	s.imageQueue.Start()
	s.mediaQueue.Start()

	if err := s.cleanupSvc.Start(); err != nil {
		return err
	}

	s.Logger.Infof("在端口 %s 启动服务器", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown 依次停止 HTTP 服务器与后台服务
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)

	// 等待进行中的任务结束后再关闭队列
	s.cleanupSvc.Stop()
	s.imageQueue.Stop()
	s.mediaQueue.Stop()

	if closeErr := s.notifier.Close(); closeErr != nil {
		s.Logger.Errorf("关闭通知客户端失败: %v", closeErr)
	}
	if dbErr := database.Close(); dbErr != nil {
		s.Logger.Errorf("关闭数据库连接失败: %v", dbErr)
	}
	return err
}

// setupRoutes 设置API路由
func (s *Server) setupRoutes() {
	convertHandler := handler.NewConvertHandler(s.Logger, s.imageQueue, s.mediaQueue)
	formatsHandler := handler.NewFormatsHandler()
	authHandler := handler.NewAuthHandler(s.Config)
	adminHandler := handler.NewAdminHandler(s.Logger, s.imageQueue, s.mediaQueue, s.cleanupSvc, s.historySvc)

	api := s.gin.Group("/api")

	// 转换相关路由（公开）
	convert := api.Group("/convert")
	{
		convert.POST("/image", convertHandler.ConvertImage)
		convert.POST("/media", convertHandler.ConvertMedia)
		convert.GET("/status", convertHandler.Status)
		convert.GET("/download", convertHandler.Download)
	}

	// 格式发现
	api.GET("/formats", formatsHandler.GetFormats)

	// 认证相关路由
	api.POST("/auth/login", authHandler.Login)

	// 需要JWT验证的管理路由
	admin := api.Group("/admin")
	admin.Use(middleware.JWTAuth(s.Config))
	{
		admin.GET("/queues", adminHandler.GetQueues)
		admin.POST("/cleanup", adminHandler.Cleanup)
		admin.GET("/history", adminHandler.GetHistory)
	}
}
