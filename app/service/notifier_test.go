package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"media-forge/app/logger"
	"media-forge/app/model"
)

func TestNotifierPostsTerminalJob(t *testing.T) {
	received := make(chan JobNotifyPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("请求方法 = %s, 期望 POST", r.Method)
		}
		var payload JobNotifyPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("解析回调请求体失败: %v", err)
		}
		received <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(logger.NewNop(), 5*time.Second)
	n.NotifyTerminal(model.Job{
		ID:           "job-9",
		Status:       model.JobStatusCompleted,
		OriginalName: "track.wav",
		InputFormat:  "wav",
		OutputFormat: "mp3",
		CallbackURL:  srv.URL,
		Result:       &model.JobResult{Filename: "job-9_track.mp3", Size: 123},
	})

	select {
	case payload := <-received:
		if payload.ID != "job-9" || payload.Status != model.JobStatusCompleted {
			t.Errorf("回调内容 = %s/%s, 期望 job-9/completed", payload.ID, payload.Status)
		}
		if payload.Result == nil || payload.Result.Filename != "job-9_track.mp3" {
			t.Error("回调缺少转换结果")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("未收到回调请求")
	}

	if err := n.Close(); err != nil {
		t.Errorf("Close 返回错误: %v", err)
	}
}

func TestNotifierCloseWaitsForInflight(t *testing.T) {
	var done atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		done.Store(true)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(logger.NewNop(), 5*time.Second)
	n.NotifyTerminal(model.Job{
		ID:          "job-10",
		Status:      model.JobStatusFailed,
		Error:       "转码失败",
		CallbackURL: srv.URL,
	})

	// Close 必须等到进行中的回调结束
	if err := n.Close(); err != nil {
		t.Errorf("Close 返回错误: %v", err)
	}
	if !done.Load() {
		t.Error("Close 在回调仍在进行时就返回了")
	}
}

func TestNotifierSkipsEmptyCallback(t *testing.T) {
	n := NewNotifier(logger.NewNop(), time.Second)
	// 未设置回调地址时直接跳过，Close 不应被未启动的通知阻塞
	n.NotifyTerminal(model.Job{ID: "job-11", Status: model.JobStatusCompleted})
	if err := n.Close(); err != nil {
		t.Errorf("Close 返回错误: %v", err)
	}
}
