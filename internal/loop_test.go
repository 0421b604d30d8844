package internal_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/koopa0/system-design/competition-room/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) *internal.Loop {
	t.Helper()
	loop := internal.NewLoop(0, testLogger())
	go loop.Run(context.Background())
	t.Cleanup(loop.Stop)
	return loop
}

// TestLoop_Sequential 測試任務依序執行，不會同時執行
func TestLoop_Sequential(t *testing.T) {
	loop := startLoop(t)

	const n = 1000
	var (
		wg      sync.WaitGroup
		counter int // 只在迴圈內存取
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, loop.Post(func() { counter++ }))
		}()
	}
	wg.Wait()

	var got int
	require.NoError(t, loop.Do(context.Background(), func() { got = counter }))
	assert.Equal(t, n, got)
}

// TestLoop_PanicRecovery 測試單一任務 panic 不影響後續任務
func TestLoop_PanicRecovery(t *testing.T) {
	loop := startLoop(t)

	require.NoError(t, loop.Post(func() { panic("boom") }))

	ran := false
	require.NoError(t, loop.Do(context.Background(), func() { ran = true }))
	assert.True(t, ran)
}

// TestLoop_Stop 測試停止後拒絕新任務
func TestLoop_Stop(t *testing.T) {
	loop := internal.NewLoop(1, testLogger())
	go loop.Run(context.Background())

	loop.Stop()
	loop.Stop()

	assert.ErrorIs(t, loop.Post(func() {}), internal.ErrLoopStopped)
	assert.ErrorIs(t, loop.Do(context.Background(), func() {}), internal.ErrLoopStopped)
}

// TestLoop_StopWithoutRun 測試未啟動時停止不會阻塞
func TestLoop_StopWithoutRun(t *testing.T) {
	loop := internal.NewLoop(1, testLogger())

	done := make(chan struct{})
	go func() {
		loop.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked")
	}
}

// TestLoop_DoContextCancelled 測試等待逾時
func TestLoop_DoContextCancelled(t *testing.T) {
	loop := startLoop(t)

	release := make(chan struct{})
	require.NoError(t, loop.Post(func() { <-release }))
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, loop.Do(ctx, func() {}), context.DeadlineExceeded)
}
