package service

import (
	"sync"
	"time"

	"media-forge/app/logger"
	"media-forge/app/model"

	"resty.dev/v3"
)

// JobNotifyPayload 回调通知的请求体
type JobNotifyPayload struct {
	ID           string           `json:"id"`
	Status       model.JobStatus  `json:"status"`
	OriginalName string           `json:"originalName"`
	InputFormat  string           `json:"inputFormat"`
	OutputFormat string           `json:"outputFormat"`
	Result       *model.JobResult `json:"result,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// Notifier 任务完成后向提交方指定的回调地址推送结果。
// 通知是尽力而为的：失败只记日志，不影响任务状态，也不重试。
type Notifier struct {
	log    *logger.Logger
	client *resty.Client
	wg     sync.WaitGroup
}

// NewNotifier 创建通知服务
func NewNotifier(log *logger.Logger, timeout time.Duration) *Notifier {
	client := resty.New()
	client.SetTimeout(timeout)

	return &Notifier{
		log:    log,
		client: client,
	}
}

// Close 等待进行中的通知结束后释放底层 HTTP 客户端
func (n *Notifier) Close() error {
	n.wg.Wait()
	return n.client.Close()
}

// NotifyTerminal 异步推送终态任务的状态；未设置回调地址时跳过
func (n *Notifier) NotifyTerminal(job model.Job) {
	if job.CallbackURL == "" {
		return
	}

	payload := JobNotifyPayload{
		ID:           job.ID,
		Status:       job.Status,
		OriginalName: job.OriginalName,
		InputFormat:  job.InputFormat,
		OutputFormat: job.OutputFormat,
		Result:       job.Result,
		Error:        job.Error,
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		resp, err := n.client.R().
			SetHeader("Content-Type", "application/json").
			SetBody(payload).
			Post(job.CallbackURL)
		if err != nil {
			n.log.Warnf("回调通知失败: JobID=%s, URL=%s, 错误: %v", job.ID, job.CallbackURL, err)
			return
		}
		if resp.StatusCode() >= 300 {
			n.log.Warnf("回调通知被拒绝: JobID=%s, URL=%s, 状态码: %d", job.ID, job.CallbackURL, resp.StatusCode())
			return
		}
		n.log.Debugf("回调通知成功: JobID=%s, URL=%s", job.ID, job.CallbackURL)
	}()
}
