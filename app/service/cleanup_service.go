package service

import (
	"time"

	"media-forge/app/logger"

	"github.com/robfig/cron/v3"
)

// CleanupService 周期清理各队列中过期的终态任务记录
type CleanupService struct {
	log       *logger.Logger
	cron      *cron.Cron
	queues    []*ConversionQueue
	retention time.Duration
	spec      string
}

// NewCleanupService 创建清理服务。spec 为 cron 表达式，默认每小时执行一次。
func NewCleanupService(log *logger.Logger, retention time.Duration, spec string, queues ...*ConversionQueue) *CleanupService {
	if spec == "" {
		spec = "@hourly"
	}
	return &CleanupService{
		log:       log,
		cron:      cron.New(),
		queues:    queues,
		retention: retention,
		spec:      spec,
	}
}

// Start 启动定时清理
func (s *CleanupService) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.RunOnce); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Infof("清理服务已启动: 计划=%s, 保留时长=%v", s.spec, s.retention)
	return nil
}

// Stop 停止定时清理并等待进行中的清理结束
func (s *CleanupService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("清理服务已停止")
}

// RunOnce 立即对所有队列执行一次清理，也供管理接口手动触发
func (s *CleanupService) RunOnce() {
	s.RunWithMaxAge(s.retention)
}

// RunWithMaxAge 以指定的保留时长执行一次清理
func (s *CleanupService) RunWithMaxAge(maxAge time.Duration) {
	for _, q := range s.queues {
		q.CleanupResults(maxAge)
	}
}
