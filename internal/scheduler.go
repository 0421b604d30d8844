package internal

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Task 計時器到期時在事件迴圈內執行的任務
type Task func() Effects

// TimerKind 房間計時器種類
type TimerKind string

const (
	TimerCountdown TimerKind = "countdown" // 開始倒數
	TimerQuestion  TimerKind = "question"  // 作答超時
	TimerAdvance   TimerKind = "advance"   // 全員作答後切換下一題
	TimerRetention TimerKind = "retention" // 結束後保留結果
)

var timerKinds = []TimerKind{TimerCountdown, TimerQuestion, TimerAdvance, TimerRetention}

// TimerKey 計時器鍵：房間碼 + 種類
func TimerKey(code string, kind TimerKind) string {
	return fmt.Sprintf("%s:%s", code, kind)
}

// Scheduler 可取消的具名計時器
//
// 同一 key 重新排程會先取消舊的。取消必須明確呼叫，
// 房間刪除時 Manager 會取消該房間所有計時器。
type Scheduler interface {
	Schedule(key string, d time.Duration, task Task)
	Cancel(key string)
}

// TimerScheduler 以 time.AfterFunc 實作，到期時把任務投遞回事件迴圈
type TimerScheduler struct {
	loop   *Loop
	apply  func(Effects)
	logger *slog.Logger

	mu     sync.Mutex
	timers map[string]*scheduledTimer
	seq    uint64
}

type scheduledTimer struct {
	timer *time.Timer
	seq   uint64
}

// NewTimerScheduler 創建排程器，任務結果交給 apply 套用
func NewTimerScheduler(loop *Loop, apply func(Effects), logger *slog.Logger) *TimerScheduler {
	return &TimerScheduler{
		loop:   loop,
		apply:  apply,
		logger: logger,
		timers: make(map[string]*scheduledTimer),
	}
}

// Schedule 排程任務
func (s *TimerScheduler) Schedule(key string, d time.Duration, task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.timers[key]; ok {
		old.timer.Stop()
	}
	s.seq++
	seq := s.seq
	entry := &scheduledTimer{seq: seq}
	entry.timer = time.AfterFunc(d, func() {
		err := s.loop.Post(func() {
			// 已取消或被重新排程的計時器在此被忽略
			if !s.claim(key, seq) {
				return
			}
			s.apply(task())
		})
		if err != nil {
			s.logger.Debug("計時器到期但事件迴圈已停止", "key", key)
		}
	})
	s.timers[key] = entry
}

// claim 確認計時器仍有效並移除
func (s *TimerScheduler) claim(key string, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.timers[key]
	if !ok || entry.seq != seq {
		return false
	}
	delete(s.timers, key)
	return true
}

// Cancel 取消計時器，不存在時不做任何事
func (s *TimerScheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.timers[key]; ok {
		entry.timer.Stop()
		delete(s.timers, key)
	}
}

// Pending 尚未到期的計時器數量
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// StopAll 停止所有計時器
func (s *TimerScheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.timers {
		entry.timer.Stop()
		delete(s.timers, key)
	}
}
