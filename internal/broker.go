package internal

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Sender 可以接收已序列化訊息的連接
type Sender interface {
	ID() string
	// Enqueue 非阻塞送出，緩衝區滿時回傳 false
	Enqueue(msg []byte) bool
}

// Broker 進程內的頻道訂閱與廣播
//
// 頻道即房間碼，一個連接同時最多訂閱一個頻道。
// 訂閱表由事件迴圈寫入、傳輸層註冊連接，因此以鎖保護。
type Broker struct {
	mu       sync.RWMutex
	conns    map[string]Sender              // connID -> Sender
	channels map[string]map[string]struct{} // channel -> connIDs
	logger   *slog.Logger
}

// NewBroker 創建 Broker
func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{
		conns:    make(map[string]Sender),
		channels: make(map[string]map[string]struct{}),
		logger:   logger,
	}
}

// Register 註冊連接
func (b *Broker) Register(s Sender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conns[s.ID()] = s
}

// Unregister 移除連接及其所有訂閱
func (b *Broker) Unregister(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conns, connID)
	for channel, members := range b.channels {
		delete(members, connID)
		if len(members) == 0 {
			delete(b.channels, channel)
		}
	}
}

// Apply 依序套用副作用
func (b *Broker) Apply(fx Effects) {
	for _, eff := range fx {
		switch eff.Kind {
		case EffectSubscribe:
			b.subscribe(eff.ConnID, eff.Channel)
		case EffectUnsubscribe:
			b.unsubscribe(eff.ConnID, eff.Channel)
		case EffectSend:
			b.send(eff.ConnID, eff.Event)
		case EffectBroadcast:
			b.broadcast(eff.Channel, eff.Event)
		}
	}
}

// subscribe 重複訂閱不做任何事
func (b *Broker) subscribe(connID, channel string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	members, ok := b.channels[channel]
	if !ok {
		members = make(map[string]struct{})
		b.channels[channel] = members
	}
	members[connID] = struct{}{}
}

func (b *Broker) unsubscribe(connID, channel string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	members, ok := b.channels[channel]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(b.channels, channel)
	}
}

func (b *Broker) send(connID string, event Event) {
	msg, ok := b.encode(event)
	if !ok {
		return
	}
	b.mu.RLock()
	s, exists := b.conns[connID]
	b.mu.RUnlock()
	if !exists {
		return
	}
	if !s.Enqueue(msg) {
		b.logger.Warn("連接緩衝區滿", "conn_id", connID, "event", event.Type)
	}
}

func (b *Broker) broadcast(channel string, event Event) {
	msg, ok := b.encode(event)
	if !ok {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for connID := range b.channels[channel] {
		s, exists := b.conns[connID]
		if !exists {
			continue
		}
		if !s.Enqueue(msg) {
			// 慢客戶端不拖累整個房間
			b.logger.Warn("連接緩衝區滿",
				"channel", channel,
				"conn_id", connID,
				"event", event.Type)
		}
	}
}

func (b *Broker) encode(event Event) ([]byte, bool) {
	msg, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("序列化事件失敗", "event", event.Type, "error", err)
		return nil, false
	}
	return msg, true
}

// Members 頻道內的連接 ID
func (b *Broker) Members(channel string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.channels[channel]))
	for connID := range b.channels[channel] {
		out = append(out, connID)
	}
	return out
}

// ConnectionCount 已註冊的連接數
func (b *Broker) ConnectionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.conns)
}
