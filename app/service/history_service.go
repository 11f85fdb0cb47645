package service

import (
	"media-forge/app/logger"
	"media-forge/app/model"

	"gorm.io/gorm"
)

// HistoryService 将终态任务记录到数据库，供统计和审计查询。
// 队列本身保持内存驻留，历史记录只追加。
type HistoryService struct {
	log *logger.Logger
	db  *gorm.DB
}

// NewHistoryService 创建历史记录服务
func NewHistoryService(log *logger.Logger, db *gorm.DB) *HistoryService {
	return &HistoryService{log: log, db: db}
}

// Record 写入一条终态任务的历史记录
func (s *HistoryService) Record(job model.Job) {
	entry := &model.JobHistory{
		JobID:        job.ID,
		MediaType:    string(job.MediaType),
		OriginalName: job.OriginalName,
		InputFormat:  job.InputFormat,
		OutputFormat: job.OutputFormat,
		Status:       string(job.Status),
		ErrorMsg:     job.Error,
		SubmittedAt:  job.CreatedAt,
		FinishedAt:   job.UpdatedAt,
	}
	if job.Result != nil {
		entry.OutputSize = job.Result.Size
		entry.Duration = job.Result.Duration
	}

	if err := s.db.Create(entry).Error; err != nil {
		s.log.Errorf("写入任务历史失败: JobID=%s, 错误: %v", job.ID, err)
	}
}

// Recent 返回最近的历史记录
func (s *HistoryService) Recent(limit, offset int) ([]model.JobHistory, int64, error) {
	var entries []model.JobHistory
	var total int64

	if err := s.db.Model(&model.JobHistory{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := s.db.Order("finished_at DESC").
		Limit(limit).Offset(offset).
		Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
