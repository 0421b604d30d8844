package internal

import (
	"slices"
	"time"
)

// ManualScheduler 測試用排程器，計時器只在呼叫 Fire 時執行
type ManualScheduler struct {
	tasks     map[string]Task
	durations map[string]time.Duration
}

// NewManualScheduler 創建手動排程器
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{
		tasks:     make(map[string]Task),
		durations: make(map[string]time.Duration),
	}
}

func (s *ManualScheduler) Schedule(key string, d time.Duration, task Task) {
	s.tasks[key] = task
	s.durations[key] = d
}

func (s *ManualScheduler) Cancel(key string) {
	delete(s.tasks, key)
	delete(s.durations, key)
}

// Fire 執行並移除計時器，不存在時回傳 nil
func (s *ManualScheduler) Fire(key string) Effects {
	task, ok := s.tasks[key]
	if !ok {
		return nil
	}
	s.Cancel(key)
	return task()
}

// Pending 計時器是否仍在等待
func (s *ManualScheduler) Pending(key string) bool {
	_, ok := s.tasks[key]
	return ok
}

// Duration 計時器的延遲
func (s *ManualScheduler) Duration(key string) time.Duration {
	return s.durations[key]
}

// Keys 所有等待中的計時器
func (s *ManualScheduler) Keys() []string {
	keys := make([]string, 0, len(s.tasks))
	for k := range s.tasks {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
