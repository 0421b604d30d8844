package internal_test

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/koopa0/system-design/competition-room/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSender 記錄收到的訊息
type fakeSender struct {
	id   string
	full bool

	mu       sync.Mutex
	messages [][]byte
}

func newFakeSender(id string) *fakeSender {
	return &fakeSender{id: id}
}

func (s *fakeSender) ID() string { return s.id }

func (s *fakeSender) Enqueue(msg []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return false
	}
	s.messages = append(s.messages, msg)
	return true
}

type received struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// events 依序回傳收到的事件名稱
func (s *fakeSender) events(t *testing.T) []string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.messages))
	for _, m := range s.messages {
		var r received
		require.NoError(t, json.Unmarshal(m, &r))
		names = append(names, r.Event)
	}
	return names
}

// last 解析最後一則指定事件的 data
func (s *fakeSender) last(t *testing.T, event string, v any) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		var r received
		require.NoError(t, json.Unmarshal(s.messages[i], &r))
		if r.Event == event {
			require.NoError(t, json.Unmarshal(r.Data, v))
			return
		}
	}
	t.Fatalf("event %s not received", event)
}

// TestBroker_Apply 測試訂閱與廣播
func TestBroker_Apply(t *testing.T) {
	broker := internal.NewBroker(testLogger())
	a, b, c := newFakeSender("a"), newFakeSender("b"), newFakeSender("c")
	broker.Register(a)
	broker.Register(b)
	broker.Register(c)

	var fx internal.Effects
	fx.Subscribe("a", "ROOM11")
	fx.Subscribe("b", "ROOM11")
	fx.Subscribe("c", "ROOM22")
	fx.Broadcast("ROOM11", internal.EventCountdownUpdate, internal.CountdownPayload{Countdown: 2})
	fx.Send("c", internal.EventRoomCreated, internal.RoomCreatedPayload{RoomCode: "ROOM22"})
	broker.Apply(fx)

	assert.Equal(t, []string{internal.EventCountdownUpdate}, a.events(t))
	assert.Equal(t, []string{internal.EventCountdownUpdate}, b.events(t))
	assert.Equal(t, []string{internal.EventRoomCreated}, c.events(t))

	var p internal.CountdownPayload
	a.last(t, internal.EventCountdownUpdate, &p)
	assert.Equal(t, 2, p.Countdown)
	assert.ElementsMatch(t, []string{"a", "b"}, broker.Members("ROOM11"))
}

// TestBroker_Unsubscribe 測試取消訂閱後不再收到廣播
func TestBroker_Unsubscribe(t *testing.T) {
	broker := internal.NewBroker(testLogger())
	a, b := newFakeSender("a"), newFakeSender("b")
	broker.Register(a)
	broker.Register(b)

	var fx internal.Effects
	fx.Subscribe("a", "ROOM11")
	fx.Subscribe("b", "ROOM11")
	fx.Unsubscribe("b", "ROOM11")
	fx.Broadcast("ROOM11", internal.EventPlayerLeft, internal.PlayerLeftPayload{PlayerID: "B"})
	broker.Apply(fx)

	assert.Len(t, a.events(t), 1)
	assert.Empty(t, b.events(t))

	broker.Unregister("a")
	assert.Empty(t, broker.Members("ROOM11"))
	assert.Equal(t, 1, broker.ConnectionCount())
}

// TestBroker_SlowConsumer 測試緩衝區滿的連接不影響其他連接
func TestBroker_SlowConsumer(t *testing.T) {
	broker := internal.NewBroker(testLogger())
	slow, fast := newFakeSender("slow"), newFakeSender("fast")
	slow.full = true
	broker.Register(slow)
	broker.Register(fast)

	var fx internal.Effects
	fx.Subscribe("slow", "ROOM11")
	fx.Subscribe("fast", "ROOM11")
	fx.Broadcast("ROOM11", internal.EventNextQuestion, internal.NextQuestionPayload{QuestionIndex: 1})
	broker.Apply(fx)

	assert.Empty(t, slow.events(t))
	assert.Equal(t, []string{internal.EventNextQuestion}, fast.events(t))
}

// TestBroker_UnknownConnection 測試送給不存在的連接
func TestBroker_UnknownConnection(t *testing.T) {
	broker := internal.NewBroker(testLogger())

	var fx internal.Effects
	fx.Error("ghost", internal.ErrRoomNotFound)
	fx.Subscribe("ghost", "ROOM11")
	fx.Broadcast("ROOM11", internal.EventPlayerReady, nil)

	assert.NotPanics(t, func() { broker.Apply(fx) })
}
