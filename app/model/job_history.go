package model

import (
	"time"
)

// JobHistory 终态任务的落库记录，用于统计与审计。
// 队列本身保持内存驻留，历史只追加、不回放。
type JobHistory struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	JobID        string    `json:"job_id" gorm:"not null;uniqueIndex"`
	MediaType    string    `json:"media_type" gorm:"size:20;index"`
	OriginalName string    `json:"original_name"`
	InputFormat  string    `json:"input_format" gorm:"size:10"`
	OutputFormat string    `json:"output_format" gorm:"size:10"`
	Status       string    `json:"status" gorm:"size:20;index"`
	ErrorMsg     string    `json:"error_msg" gorm:"type:text"`
	OutputSize   int64     `json:"output_size"`
	Duration     float64   `json:"duration"`
	SubmittedAt  time.Time `json:"submitted_at"`
	FinishedAt   time.Time `json:"finished_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName 指定表名
func (JobHistory) TableName() string {
	return "job_history"
}
