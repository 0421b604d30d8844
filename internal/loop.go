package internal

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrLoopStopped 事件迴圈已停止
var ErrLoopStopped = errors.New("事件迴圈已停止")

// Loop 單執行緒事件迴圈
//
// 所有入站事件處理與計時器回呼都在同一個 goroutine 依序執行，
// 一個任務執行完畢才會開始下一個，因此房間狀態不需要加鎖。
// 任務內不得阻塞（無磁碟、無外部網路）。
type Loop struct {
	tasks    chan func()
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	logger   *slog.Logger
}

// NewLoop 創建事件迴圈
func NewLoop(buffer int, logger *slog.Logger) *Loop {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Loop{
		tasks:  make(chan func(), buffer),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		logger: logger,
	}
}

// Run 執行迴圈直到 ctx 取消或呼叫 Stop
func (l *Loop) Run(ctx context.Context) {
	l.started.Store(true)
	defer close(l.doneCh)
	for {
		select {
		case task := <-l.tasks:
			l.safeRun(task)
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		}
	}
}

// safeRun 單一任務 panic 不會終止迴圈
func (l *Loop) safeRun(task func()) {
	defer func() {
		if err := recover(); err != nil {
			l.logger.Error("事件處理發生 panic", "error", err)
		}
	}()
	task()
}

// Post 排入任務，佇列滿時等待
func (l *Loop) Post(task func()) error {
	select {
	case <-l.stopCh:
		return ErrLoopStopped
	case <-l.doneCh:
		return ErrLoopStopped
	default:
	}

	select {
	case l.tasks <- task:
		return nil
	case <-l.stopCh:
		return ErrLoopStopped
	case <-l.doneCh:
		return ErrLoopStopped
	}
}

// Do 排入任務並等待執行完成
func (l *Loop) Do(ctx context.Context, task func()) error {
	done := make(chan struct{})
	err := l.Post(func() {
		defer close(done)
		task()
	})
	if err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.doneCh:
		return ErrLoopStopped
	}
}

// Stop 停止迴圈並等待目前任務結束
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
	if l.started.Load() {
		<-l.doneCh
	}
}
