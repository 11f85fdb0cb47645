package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"media-forge/app/formats"
	"media-forge/app/logger"
	"media-forge/app/model"
)

// fakeBackend 可控的转换后端：记录执行顺序，可按需阻塞或返回错误
type fakeBackend struct {
	mu      sync.Mutex
	order   []string
	started chan string   // 每次开始执行时写入任务 ID
	release chan struct{} // 非 nil 时阻塞至收到信号
	failIDs map[string]bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		started: make(chan string, 64),
		failIDs: make(map[string]bool),
	}
}

func (f *fakeBackend) Convert(ctx context.Context, job *model.Job) (*model.JobResult, error) {
	f.mu.Lock()
	f.order = append(f.order, job.ID)
	fail := f.failIDs[job.ID]
	f.mu.Unlock()

	f.started <- job.ID
	if f.release != nil {
		<-f.release
	}
	if fail {
		return nil, errors.New("模拟转换失败")
	}
	return &model.JobResult{Filename: job.OriginalName}, nil
}

func (f *fakeBackend) executed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

func newTestQueue(t *testing.T, backend Backend) *ConversionQueue {
	t.Helper()
	return NewConversionQueue(QueueConfig{
		Name:     "test",
		Backend:  backend,
		Validate: formats.IsMediaSupported,
	}, logger.NewNop())
}

// 轮询等待任务进入指定状态
func waitForStatus(t *testing.T, q *ConversionQueue, jobID string, status model.JobStatus) model.Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if job, ok := q.GetJob(jobID); ok && job.Status == status {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := q.GetJob(jobID)
	t.Fatalf("任务 %s 未在期限内进入状态 %s，当前: %s", jobID, status, job.Status)
	return model.Job{}
}

func TestAddJobImmediatelyQueryable(t *testing.T) {
	q := newTestQueue(t, newFakeBackend())
	// 不启动执行协程，验证入队后立即可查

	id, err := q.AddJob([]byte("payload"), "a.wav", "wav", "mp3", formats.MediaAudio, "")
	if err != nil {
		t.Fatalf("AddJob 返回错误: %v", err)
	}
	if id == "" {
		t.Fatal("AddJob 返回了空 ID")
	}

	job, ok := q.GetJob(id)
	if !ok {
		t.Fatal("入队后立即查询不到任务")
	}
	if job.Status != model.JobStatusPending {
		t.Errorf("新任务状态 = %s, 期望 pending", job.Status)
	}
	if job.InputFormat != "wav" || job.OutputFormat != "mp3" {
		t.Errorf("任务格式 = %s -> %s, 期望 wav -> mp3", job.InputFormat, job.OutputFormat)
	}
}

func TestAddJobDistinctIDs(t *testing.T) {
	q := newTestQueue(t, newFakeBackend())

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, err := q.AddJob(nil, "a.wav", "wav", "mp3", formats.MediaAudio, "")
		if err != nil {
			t.Fatalf("AddJob 返回错误: %v", err)
		}
		if seen[id] {
			t.Fatalf("出现重复 ID: %s", id)
		}
		seen[id] = true
	}
}

func TestAddJobRejectsUnsupportedFormat(t *testing.T) {
	q := newTestQueue(t, newFakeBackend())

	_, err := q.AddJob(nil, "a.wav", "wav", "xyz", formats.MediaAudio, "")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("期望 ErrUnsupportedFormat, 实际: %v", err)
	}

	// 被拒绝的提交不应留下任何记录
	counts := q.Counts()
	for status, n := range counts {
		if n != 0 {
			t.Errorf("状态 %s 存在 %d 条记录, 期望 0", status, n)
		}
	}
}

func TestWorkerProcessesInOrder(t *testing.T) {
	backend := newFakeBackend()
	q := newTestQueue(t, backend)

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := q.AddJob(nil, fmt.Sprintf("f%d.wav", i), "wav", "mp3", formats.MediaAudio, "")
		if err != nil {
			t.Fatalf("AddJob 返回错误: %v", err)
		}
		ids = append(ids, id)
	}

	q.Start()
	defer q.Stop()

	for _, id := range ids {
		waitForStatus(t, q, id, model.JobStatusCompleted)
	}

	executed := backend.executed()
	if len(executed) != len(ids) {
		t.Fatalf("执行了 %d 个任务, 期望 %d", len(executed), len(ids))
	}
	for i, id := range ids {
		if executed[i] != id {
			t.Fatalf("第 %d 个执行的任务 = %s, 期望 %s（应按提交顺序执行）", i, executed[i], id)
		}
	}
}

func TestSingleFlight(t *testing.T) {
	backend := newFakeBackend()
	backend.release = make(chan struct{})
	q := newTestQueue(t, backend)
	q.Start()
	defer q.Stop()

	first, err := q.AddJob(nil, "a.wav", "wav", "mp3", formats.MediaAudio, "")
	if err != nil {
		t.Fatalf("AddJob 返回错误: %v", err)
	}
	second, err := q.AddJob(nil, "b.wav", "wav", "mp3", formats.MediaAudio, "")
	if err != nil {
		t.Fatalf("AddJob 返回错误: %v", err)
	}

	// 等待第一个任务进入后端
	select {
	case started := <-backend.started:
		if started != first {
			t.Fatalf("先执行的任务 = %s, 期望 %s", started, first)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("第一个任务未开始执行")
	}

	// 第一个任务阻塞期间，第二个必须保持 pending，后端不得收到它
	waitForStatus(t, q, first, model.JobStatusProcessing)
	job, _ := q.GetJob(second)
	if job.Status != model.JobStatusPending {
		t.Fatalf("前一任务执行期间第二个任务状态 = %s, 期望 pending", job.Status)
	}
	select {
	case id := <-backend.started:
		t.Fatalf("前一任务未结束时后端收到了任务 %s", id)
	case <-time.After(50 * time.Millisecond):
	}

	// 放行后两个任务依次完成
	close(backend.release)
	waitForStatus(t, q, first, model.JobStatusCompleted)
	waitForStatus(t, q, second, model.JobStatusCompleted)
}

func TestFailureDoesNotBlockQueue(t *testing.T) {
	backend := newFakeBackend()
	q := newTestQueue(t, backend)

	bad, err := q.AddJob(nil, "bad.wav", "wav", "mp3", formats.MediaAudio, "")
	if err != nil {
		t.Fatalf("AddJob 返回错误: %v", err)
	}
	backend.mu.Lock()
	backend.failIDs[bad] = true
	backend.mu.Unlock()

	good, err := q.AddJob(nil, "good.wav", "wav", "mp3", formats.MediaAudio, "")
	if err != nil {
		t.Fatalf("AddJob 返回错误: %v", err)
	}

	q.Start()
	defer q.Stop()

	failed := waitForStatus(t, q, bad, model.JobStatusFailed)
	if failed.Error == "" {
		t.Error("失败任务缺少错误信息")
	}
	if failed.Result != nil {
		t.Error("失败任务不应携带结果")
	}

	completed := waitForStatus(t, q, good, model.JobStatusCompleted)
	if completed.Result == nil {
		t.Error("完成任务缺少结果")
	}
}

func TestConcurrentSubmissions(t *testing.T) {
	backend := newFakeBackend()
	q := newTestQueue(t, backend)
	q.Start()
	defer q.Stop()

	const n = 32
	var wg sync.WaitGroup
	idCh := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := q.AddJob(nil, fmt.Sprintf("f%d.wav", i), "wav", "mp3", formats.MediaAudio, "")
			if err != nil {
				t.Errorf("AddJob 返回错误: %v", err)
				return
			}
			if _, ok := q.GetJob(id); !ok {
				t.Errorf("并发入队后查询不到任务 %s", id)
				return
			}
			idCh <- id
		}(i)
	}
	wg.Wait()
	close(idCh)

	for id := range idCh {
		waitForStatus(t, q, id, model.JobStatusCompleted)
	}
	if got := len(backend.executed()); got != n {
		t.Errorf("执行了 %d 个任务, 期望 %d", got, n)
	}
}

func TestCleanupResults(t *testing.T) {
	backend := newFakeBackend()
	q := newTestQueue(t, backend)

	done, err := q.AddJob(nil, "a.wav", "wav", "mp3", formats.MediaAudio, "")
	if err != nil {
		t.Fatalf("AddJob 返回错误: %v", err)
	}
	q.Start()
	waitForStatus(t, q, done, model.JobStatusCompleted)
	q.Stop()

	// 停止后入队的任务保持 pending
	pending, err := q.AddJob(nil, "b.wav", "wav", "mp3", formats.MediaAudio, "")
	if err != nil {
		t.Fatalf("AddJob 返回错误: %v", err)
	}

	// 大的 maxAge 不应清理刚完成的任务
	q.CleanupResults(time.Hour)
	if _, ok := q.GetJob(done); !ok {
		t.Fatal("未过期的终态任务被清理了")
	}

	// maxAge 为 0 时立即清理所有终态任务，非终态任务保留
	q.CleanupResults(0)
	if _, ok := q.GetJob(done); ok {
		t.Error("终态任务未被清理")
	}
	if _, ok := q.GetJob(pending); !ok {
		t.Error("非终态任务不应被清理")
	}
}

func TestCleanupResultsRemovesOutputFile(t *testing.T) {
	tmpDir := t.TempDir()
	outputPath := filepath.Join(tmpDir, "out.mp3")
	if err := os.WriteFile(outputPath, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	backend := &localPathBackend{path: outputPath}
	q := newTestQueue(t, backend)

	id, err := q.AddJob(nil, "a.wav", "wav", "mp3", formats.MediaAudio, "")
	if err != nil {
		t.Fatalf("AddJob 返回错误: %v", err)
	}
	q.Start()
	waitForStatus(t, q, id, model.JobStatusCompleted)
	q.Stop()

	q.CleanupResults(0)
	if _, err := os.Stat(outputPath); !os.IsNotExist(err) {
		t.Error("清理记录时未删除输出文件")
	}
}

// localPathBackend 返回指向本地文件的结果，用于验证清理时的文件删除
type localPathBackend struct {
	path string
}

func (b *localPathBackend) Convert(ctx context.Context, job *model.Job) (*model.JobResult, error) {
	return &model.JobResult{Filename: "out.mp3", LocalPath: b.path}, nil
}

func TestPersistInputWritesAndRemovesTempFile(t *testing.T) {
	tmpDir := t.TempDir()
	backend := newFakeBackend()
	backend.release = make(chan struct{})
	q := NewConversionQueue(QueueConfig{
		Name:         "test",
		Backend:      backend,
		Validate:     formats.IsMediaSupported,
		PersistInput: true,
		TempDir:      tmpDir,
	}, logger.NewNop())
	q.Start()
	defer q.Stop()

	id, err := q.AddJob([]byte("payload"), "a.wav", "wav", "mp3", formats.MediaAudio, "")
	if err != nil {
		t.Fatalf("AddJob 返回错误: %v", err)
	}

	inputPath := filepath.Join(tmpDir, id+"_input.wav")
	data, err := os.ReadFile(inputPath)
	if err != nil {
		t.Fatalf("读取临时输入文件失败: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("临时文件内容 = %q, 期望 %q", data, "payload")
	}

	<-backend.started
	close(backend.release)
	waitForStatus(t, q, id, model.JobStatusCompleted)

	// 任务结束后临时输入文件应被删除
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(inputPath); os.IsNotExist(err) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("任务结束后临时输入文件未被删除")
}

func TestOnTerminalCallback(t *testing.T) {
	backend := newFakeBackend()
	terminalCh := make(chan model.Job, 1)
	q := NewConversionQueue(QueueConfig{
		Name:     "test",
		Backend:  backend,
		Validate: formats.IsMediaSupported,
		OnTerminal: func(job model.Job) {
			terminalCh <- job
		},
	}, logger.NewNop())
	q.Start()
	defer q.Stop()

	id, err := q.AddJob(nil, "a.wav", "wav", "mp3", formats.MediaAudio, "")
	if err != nil {
		t.Fatalf("AddJob 返回错误: %v", err)
	}

	select {
	case job := <-terminalCh:
		if job.ID != id {
			t.Errorf("回调任务 ID = %s, 期望 %s", job.ID, id)
		}
		if job.Status != model.JobStatusCompleted {
			t.Errorf("回调任务状态 = %s, 期望 completed", job.Status)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("未收到终态回调")
	}
}
