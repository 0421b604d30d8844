package internal_test

import (
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/koopa0/system-design/competition-room/internal"
	"github.com/stretchr/testify/require"
)

// 創建測試用的 logger
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // 測試時只顯示錯誤
	}))
}

// testClock 可手動推進的時鐘
type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// testQuestions 產生 n 題，第 i 題正確答案為 i % 3
func testQuestions(n int) []internal.Question {
	qs := make([]internal.Question, n)
	for i := range qs {
		qs[i] = internal.Question{
			ID:           fmt.Sprintf("q%d", i),
			Text:         fmt.Sprintf("題目 %d", i),
			Options:      []string{"A", "B", "C"},
			CorrectIndex: i % 3,
			Category:     "test",
			Difficulty:   "easy",
		}
	}
	return qs
}

func testBank(t *testing.T, n int) *internal.StaticBank {
	t.Helper()
	bank, err := internal.NewStaticBank(testQuestions(n))
	require.NoError(t, err)
	return bank
}

func testGameConfig() internal.GameConfig {
	cfg := internal.DefaultGameConfig()
	cfg.QuestionsPerGame = 5
	return cfg
}

// fixture 在測試 goroutine 內直接驅動 Manager，計時器由 ManualScheduler 手動觸發
type fixture struct {
	t       *testing.T
	manager *internal.Manager
	sched   *internal.ManualScheduler
	clock   *testClock
	cfg     internal.GameConfig
}

func newFixture(t *testing.T, cfg internal.GameConfig) *fixture {
	t.Helper()
	sched := internal.NewManualScheduler()
	clock := newTestClock()
	m := internal.NewManager(cfg, testBank(t, 10), sched, testLogger(), internal.WithClock(clock.Now))
	return &fixture{t: t, manager: m, sched: sched, clock: clock, cfg: cfg}
}

func conn(playerID string) string { return "conn-" + playerID }

// create 以 playerID 的連接創建房間
func (f *fixture) create(code, playerID string) string {
	f.t.Helper()
	fx := f.manager.CreateRoom(conn(playerID), internal.CreateRoomRequest{
		RoomCode:   code,
		PlayerID:   playerID,
		PlayerName: "玩家" + playerID,
	})
	created := fx.Events(internal.EventRoomCreated)
	require.Len(f.t, created, 1, "create room: %v", fx)
	return created[0].Event.Data.(internal.RoomCreatedPayload).RoomCode
}

func (f *fixture) join(code, playerID string) internal.Effects {
	f.t.Helper()
	return f.manager.JoinRoom(conn(playerID), internal.JoinRoomRequest{
		RoomCode:   code,
		PlayerID:   playerID,
		PlayerName: "玩家" + playerID,
	})
}

func (f *fixture) ready(code, playerID string) internal.Effects {
	f.t.Helper()
	return f.manager.ToggleReady(conn(playerID), internal.ToggleReadyRequest{
		RoomCode: code,
		PlayerID: playerID,
	})
}

func (f *fixture) start(code, playerID string) internal.Effects {
	f.t.Helper()
	return f.manager.StartGame(conn(playerID), internal.StartGameRequest{
		RoomCode: code,
		PlayerID: playerID,
	})
}

func (f *fixture) answer(code, playerID string, index, option int, spent float64) internal.Effects {
	f.t.Helper()
	return f.manager.Answer(conn(playerID), internal.AnswerRequest{
		RoomCode:      code,
		PlayerID:      playerID,
		QuestionIndex: &index,
		Answer:        &option,
		TimeSpent:     &spent,
	})
}

func (f *fixture) room(code string) *internal.Room {
	f.t.Helper()
	room, err := f.manager.Registry().Get(code)
	require.NoError(f.t, err)
	return room
}

// correct 目前題目的正確選項
func (f *fixture) correct(code string) int {
	f.t.Helper()
	q, ok := f.room(code).Current()
	require.True(f.t, ok)
	return q.CorrectIndex
}

// wrong 目前題目的錯誤選項
func (f *fixture) wrong(code string) int {
	return (f.correct(code) + 1) % 3
}

// fire 觸發指定房間的計時器
func (f *fixture) fire(code string, kind internal.TimerKind) internal.Effects {
	f.t.Helper()
	key := internal.TimerKey(code, kind)
	require.True(f.t, f.sched.Pending(key), "timer %s not pending, have %v", key, f.sched.Keys())
	return f.sched.Fire(key)
}

// lobby 創建房間並讓所有玩家加入且準備
func (f *fixture) lobby(code string, players ...string) string {
	f.t.Helper()
	code = f.create(code, players[0])
	for _, p := range players[1:] {
		fx := f.join(code, p)
		require.Len(f.t, fx.Events(internal.EventPlayerJoined), 1, "join %s: %v", p, fx)
	}
	for _, p := range players {
		require.Len(f.t, f.ready(code, p).Events(internal.EventPlayerReady), 1)
	}
	return code
}

// launch 開始並跑完倒數，回傳倒數最後一次觸發的 Effects
func (f *fixture) launch(code, host string) internal.Effects {
	f.t.Helper()
	fx := f.start(code, host)
	require.Len(f.t, fx.Events(internal.EventGameStarting), 1, "start: %v", fx)

	var last internal.Effects
	for i := 0; i < f.cfg.CountdownSeconds; i++ {
		last = f.fire(code, internal.TimerCountdown)
	}
	require.Len(f.t, last.Events(internal.EventGameStarted), 1)
	return last
}

// errorCode 取出單一錯誤訊息的代碼
func errorCode(t *testing.T, fx internal.Effects) string {
	t.Helper()
	errs := fx.Events(internal.EventError)
	require.Len(t, errs, 1, "expected one error, got %v", fx)
	return errs[0].Event.Data.(internal.ErrorPayload).Code
}
