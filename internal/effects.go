package internal

// Event 對外訊息
type Event struct {
	Type string `json:"event"`
	Data any    `json:"data"`
}

// EffectKind 副作用類型
type EffectKind int

const (
	EffectSubscribe   EffectKind = iota // 連接訂閱房間頻道
	EffectUnsubscribe                   // 連接取消訂閱
	EffectSend                          // 只送給單一連接
	EffectBroadcast                     // 送給頻道內所有連接
)

// Effect 狀態變更後要執行的一個傳輸動作
type Effect struct {
	Kind    EffectKind
	ConnID  string
	Channel string
	Event   Event
}

// Effects 依序執行的副作用
//
// Manager 只回傳 Effects，不直接碰傳輸層；由 Broker 依序套用。
type Effects []Effect

// Subscribe 加入頻道
func (e *Effects) Subscribe(connID, channel string) {
	*e = append(*e, Effect{Kind: EffectSubscribe, ConnID: connID, Channel: channel})
}

// Unsubscribe 離開頻道
func (e *Effects) Unsubscribe(connID, channel string) {
	*e = append(*e, Effect{Kind: EffectUnsubscribe, ConnID: connID, Channel: channel})
}

// Send 單播
func (e *Effects) Send(connID, event string, data any) {
	*e = append(*e, Effect{Kind: EffectSend, ConnID: connID, Event: Event{Type: event, Data: data}})
}

// Broadcast 頻道廣播
func (e *Effects) Broadcast(channel, event string, data any) {
	*e = append(*e, Effect{Kind: EffectBroadcast, Channel: channel, Event: Event{Type: event, Data: data}})
}

// Error 只回報給發起的連接
func (e *Effects) Error(connID string, err error) {
	e.Send(connID, EventError, ErrorPayload{Code: ErrorCode(err), Message: err.Error()})
}

// Events 篩選出指定類型的訊息（測試與日誌用）
func (e Effects) Events(eventType string) []Effect {
	var out []Effect
	for _, eff := range e {
		if (eff.Kind == EffectSend || eff.Kind == EffectBroadcast) && eff.Event.Type == eventType {
			out = append(out, eff)
		}
	}
	return out
}
