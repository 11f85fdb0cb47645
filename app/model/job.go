package model

import (
	"time"

	"media-forge/app/formats"
)

// JobStatus 任务状态
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// JobResult 转换结果。图片任务内联 DataURL，音视频任务提供下载地址。
type JobResult struct {
	DataURL  string  `json:"dataUrl,omitempty"`
	URL      string  `json:"url,omitempty"`
	Filename string  `json:"filename"`
	Size     int64   `json:"size,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	TooLarge bool    `json:"tooLarge,omitempty"`

	// 输出文件在本地磁盘上的位置，随记录清理时一并删除
	LocalPath string `json:"-"`
}

// Job 一次转换任务及其生命周期状态。
// 创建后 ID、OriginalName、InputFormat、OutputFormat 不再变化；
// 状态转换只由队列的执行协程完成。
type Job struct {
	ID            string            `json:"id"`
	MediaType     formats.MediaType `json:"mediaType"`
	OriginalName  string            `json:"originalName"`
	InputFormat   string            `json:"inputFormat"`
	OutputFormat  string            `json:"outputFormat"`
	Status        JobStatus         `json:"status"`
	Result        *JobResult        `json:"result,omitempty"`
	Error         string            `json:"error,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`

	// 输入载荷的所有权归队列：图片任务留在内存，音视频任务落盘
	InputData []byte `json:"-"`
	InputPath string `json:"-"`

	// 可选的完成回调地址
	CallbackURL string `json:"-"`
}

// IsTerminal 判断任务是否已进入终态
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// SetProcessing 标记任务开始执行
func (j *Job) SetProcessing() {
	j.Status = JobStatusProcessing
	j.UpdatedAt = time.Now()
}

// SetCompleted 写入结果并标记完成
func (j *Job) SetCompleted(result *JobResult) {
	j.Status = JobStatusCompleted
	j.Result = result
	j.Error = ""
	j.UpdatedAt = time.Now()
}

// SetFailed 记录错误信息并标记失败
func (j *Job) SetFailed(err error) {
	j.Status = JobStatusFailed
	j.Result = nil
	j.Error = err.Error()
	j.UpdatedAt = time.Now()
}

// Snapshot 返回任务的只读副本，供查询路径使用；不携带输入载荷
func (j *Job) Snapshot() Job {
	cp := *j
	cp.InputData = nil
	if j.Result != nil {
		r := *j.Result
		cp.Result = &r
	}
	return cp
}
