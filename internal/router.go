package internal

import (
	"fmt"
	"log/slog"
)

// Router 連接事件路由
//
// 解碼在呼叫端 goroutine 完成，狀態處理一律投遞到事件迴圈。
type Router struct {
	loop    *Loop
	manager *Manager
	broker  *Broker
	logger  *slog.Logger
}

// NewRouter 創建路由
func NewRouter(loop *Loop, manager *Manager, broker *Broker, logger *slog.Logger) *Router {
	return &Router{
		loop:    loop,
		manager: manager,
		broker:  broker,
		logger:  logger,
	}
}

// Connect 新連接
func (r *Router) Connect(s Sender) {
	r.broker.Register(s)
	r.logger.Debug("連接建立", "conn_id", s.ID())
}

// Disconnect 連接中斷，先在迴圈內清理會話再移除連接
func (r *Router) Disconnect(connID string) {
	err := r.loop.Post(func() {
		r.broker.Apply(r.manager.Disconnect(connID))
		r.broker.Unregister(connID)
	})
	if err != nil {
		r.broker.Unregister(connID)
	}
	r.logger.Debug("連接中斷", "conn_id", connID)
}

// HandleMessage 處理一則客戶端訊息
func (r *Router) HandleMessage(connID string, raw []byte) {
	msg, err := DecodeInbound(raw)
	if err != nil {
		var fx Effects
		fx.Error(connID, err)
		r.broker.Apply(fx)
		r.logger.Debug("無效的客戶端訊息", "conn_id", connID, "error", err)
		return
	}

	err = r.loop.Post(func() {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("處理事件時發生 panic",
					"conn_id", connID,
					"event", msg.EventName(),
					"error", p)
				var fx Effects
				fx.Error(connID, fmt.Errorf("%w: %v", ErrInternal, p))
				r.broker.Apply(fx)
			}
		}()
		r.broker.Apply(r.dispatch(connID, msg))
	})
	if err != nil {
		r.logger.Warn("事件迴圈已停止，丟棄訊息", "conn_id", connID, "event", msg.EventName())
	}
}

// dispatch 依事件類型呼叫 Manager
func (r *Router) dispatch(connID string, msg Inbound) Effects {
	switch m := msg.(type) {
	case *CreateRoomRequest:
		return r.manager.CreateRoom(connID, *m)
	case *JoinRoomRequest:
		return r.manager.JoinRoom(connID, *m)
	case *LeaveRoomRequest:
		return r.manager.LeaveRoom(connID, *m)
	case *ToggleReadyRequest:
		return r.manager.ToggleReady(connID, *m)
	case *StartGameRequest:
		return r.manager.StartGame(connID, *m)
	case *AnswerRequest:
		return r.manager.Answer(connID, *m)
	}
	var fx Effects
	fx.Error(connID, fmt.Errorf("%w: %s", ErrUnknownEvent, msg.EventName()))
	return fx
}
