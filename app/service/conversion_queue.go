package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"media-forge/app/formats"
	"media-forge/app/logger"
	"media-forge/app/model"

	"github.com/google/uuid"
)

// ErrUnsupportedFormat 输出格式不在队列的可识别集合内
var ErrUnsupportedFormat = errors.New("不支持的输出格式")

// Backend 转换后端。Convert 阻塞至转换结束，返回结果或错误。
type Backend interface {
	Convert(ctx context.Context, job *model.Job) (*model.JobResult, error)
}

// QueueConfig 队列的构造参数
type QueueConfig struct {
	Name         string                     // 队列名称，用于日志
	Backend      Backend                    // 转换后端
	Validate     func(outputFormat string) bool // 输出格式校验
	PersistInput bool                       // 输入载荷是否落盘（音视频任务需要）
	TempDir      string                     // 输入临时文件目录
	OnTerminal   func(job model.Job)        // 任务进入终态时的回调（历史落库、webhook 通知）
}

// ConversionQueue 单媒体类型的转换队列。
// 每个队列只有一个执行协程，任务严格按提交顺序逐个执行；
// backlog 和 records 由互斥锁保护，是队列仅有的共享可变状态。
type ConversionQueue struct {
	cfg QueueConfig
	log *logger.Logger

	mu      sync.Mutex
	backlog []string
	records map[string]*model.Job

	wake    chan struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewConversionQueue 创建转换队列；调用方负责 Start/Stop
func NewConversionQueue(cfg QueueConfig, log *logger.Logger) *ConversionQueue {
	return &ConversionQueue{
		cfg:     cfg,
		log:     log,
		records: make(map[string]*model.Job),
		wake:    make(chan struct{}, 1),
	}
}

// Start 启动执行协程
func (q *ConversionQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return
	}
	q.running = true
	q.stopCh = make(chan struct{})

	q.wg.Add(1)
	go q.worker()

	q.log.Infof("[%s] 转换队列已启动", q.cfg.Name)
}

// Stop 停止执行协程并等待当前任务结束
func (q *ConversionQueue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	close(q.stopCh)
	q.mu.Unlock()

	q.wg.Wait()
	q.log.Infof("[%s] 转换队列已停止", q.cfg.Name)
}

// AddJob 校验格式、持久化输入并入队，立即返回任务 ID。
// 返回的 ID 在本方法返回时即可通过 GetJob 查询到（pending 状态）。
func (q *ConversionQueue) AddJob(payload []byte, originalName, inputFormat, outputFormat string, mediaType formats.MediaType, callbackURL string) (string, error) {
	inputFormat = formats.Normalize(inputFormat)
	outputFormat = formats.Normalize(outputFormat)

	// 提交入口已校验过一次，这里防御性复查，避免垃圾任务入队
	if q.cfg.Validate != nil && !q.cfg.Validate(outputFormat) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, outputFormat)
	}

	jobID := uuid.NewString()
	now := time.Now()

	job := &model.Job{
		ID:           jobID,
		MediaType:    mediaType,
		OriginalName: originalName,
		InputFormat:  inputFormat,
		OutputFormat: outputFormat,
		Status:       model.JobStatusPending,
		CallbackURL:  callbackURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// 音视频任务的输入先落盘，转码器从磁盘读取；图片任务留在内存
	if q.cfg.PersistInput {
		if err := os.MkdirAll(q.cfg.TempDir, 0755); err != nil {
			return "", fmt.Errorf("创建临时目录失败: %w", err)
		}
		inputPath := filepath.Join(q.cfg.TempDir, fmt.Sprintf("%s_input.%s", jobID, inputFormat))
		if err := os.WriteFile(inputPath, payload, 0644); err != nil {
			return "", fmt.Errorf("写入临时文件失败: %w", err)
		}
		job.InputPath = inputPath
	} else {
		job.InputData = payload
	}

	q.mu.Lock()
	q.records[jobID] = job
	q.backlog = append(q.backlog, jobID)
	q.mu.Unlock()

	// 唤醒执行协程；缓冲为 1，重复唤醒可以安全丢弃
	select {
	case q.wake <- struct{}{}:
	default:
	}

	q.log.Infof("[%s] 任务已入队: ID=%s, %s -> %s", q.cfg.Name, jobID, inputFormat, outputFormat)
	return jobID, nil
}

// GetJob 返回任务的只读快照，不存在时返回 false；从不阻塞
func (q *ConversionQueue) GetJob(jobID string) (model.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.records[jobID]
	if !ok {
		return model.Job{}, false
	}
	return job.Snapshot(), true
}

// Counts 返回各状态的任务数量
func (q *ConversionQueue) Counts() map[model.JobStatus]int {
	q.mu.Lock()
	defer q.mu.Unlock()

	counts := map[model.JobStatus]int{
		model.JobStatusPending:    0,
		model.JobStatusProcessing: 0,
		model.JobStatusCompleted:  0,
		model.JobStatusFailed:     0,
	}
	for _, job := range q.records {
		counts[job.Status]++
	}
	return counts
}

// worker 单一执行协程：被唤醒后排空 backlog，每次只执行一个任务
func (q *ConversionQueue) worker() {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopCh:
			return
		case <-q.wake:
			q.drain()
		}
	}
}

// drain 逐个弹出并执行任务，直到 backlog 为空或队列停止
func (q *ConversionQueue) drain() {
	for {
		select {
		case <-q.stopCh:
			return
		default:
		}

		job := q.next()
		if job == nil {
			return
		}
		q.execute(job)
	}
}

// next 弹出最早入队的任务并标记为处理中；backlog 为空时返回 nil
func (q *ConversionQueue) next() *model.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.backlog) > 0 {
		jobID := q.backlog[0]
		q.backlog = q.backlog[1:]
		// 记录可能已被清理，跳过空悬的 ID
		if job, ok := q.records[jobID]; ok {
			job.SetProcessing()
			return job
		}
	}
	return nil
}

// execute 调用后端完成一次转换并写回终态。
// 后端的任何错误都收敛为任务失败，不会影响队列和后续任务。
func (q *ConversionQueue) execute(job *model.Job) {
	q.log.Infof("[%s] 开始处理任务: ID=%s", q.cfg.Name, job.ID)
	startTime := time.Now()

	result, err := q.cfg.Backend.Convert(context.Background(), job)

	q.mu.Lock()
	if err != nil {
		job.SetFailed(err)
	} else {
		job.SetCompleted(result)
	}
	// 输入载荷的所有权到此结束，无论成败都释放
	inputPath := job.InputPath
	job.InputData = nil
	job.InputPath = ""
	snapshot := job.Snapshot()
	q.mu.Unlock()

	if inputPath != "" {
		if rmErr := os.Remove(inputPath); rmErr != nil && !os.IsNotExist(rmErr) {
			q.log.Warnf("[%s] 删除临时输入文件失败: %v", q.cfg.Name, rmErr)
		}
	}

	if err != nil {
		q.log.Errorf("[%s] 任务失败: ID=%s, 耗时: %v, 错误: %v", q.cfg.Name, job.ID, time.Since(startTime), err)
	} else {
		q.log.Infof("[%s] 任务完成: ID=%s, 耗时: %v", q.cfg.Name, job.ID, time.Since(startTime))
	}

	if q.cfg.OnTerminal != nil {
		q.cfg.OnTerminal(snapshot)
	}
}

// CleanupResults 清理进入终态超过 maxAge 的任务记录及其输出文件
func (q *ConversionQueue) CleanupResults(maxAge time.Duration) {
	now := time.Now()

	q.mu.Lock()
	var outputPaths []string
	removed := 0
	for jobID, job := range q.records {
		if !job.IsTerminal() || now.Sub(job.UpdatedAt) < maxAge {
			continue
		}
		if job.Result != nil && job.Result.LocalPath != "" {
			outputPaths = append(outputPaths, job.Result.LocalPath)
		}
		delete(q.records, jobID)
		removed++
	}
	q.mu.Unlock()

	for _, p := range outputPaths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			q.log.Warnf("[%s] 删除输出文件失败: %v", q.cfg.Name, err)
		}
	}

	if removed > 0 {
		q.log.Infof("[%s] 清理了 %d 个过期任务记录", q.cfg.Name, removed)
	}
}
