package internal

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// 系統設計問題：
//   如何把每位玩家的裝置穩定地接到房間協調器？
//
// 設計方案：
//   - WebSocket 全雙工，伺服器主動推送房間事件
//   - 每個連接一個 readPump、一個 writePump，寫入只經由 Send channel
//   - Ping/Pong 心跳偵測死連接（54s/60s）
//   - 緩衝 channel 異步發送，滿了就丟棄，不阻塞事件迴圈

// WebSocketHub 管理所有 WebSocket 連接
type WebSocketHub struct {
	router   *Router
	cfg      WebSocketConfig
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu          sync.RWMutex
	connections map[string]*Connection // connID -> Connection
	stopped     bool
}

// Connection 單一 WebSocket 連接
type Connection struct {
	id       string
	conn     *websocket.Conn
	send     chan []byte
	hub      *WebSocketHub
	mu       sync.Mutex
	closed   bool
	lastPong time.Time
}

// NewWebSocketHub 創建 WebSocket Hub
func NewWebSocketHub(router *Router, cfg WebSocketConfig, allowedOrigins []string, logger *slog.Logger) *WebSocketHub {
	return &WebSocketHub{
		router: router,
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[string]*Connection),
	}
}

// originChecker 空列表或含 "*" 時接受所有來源
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeWS 升級為 WebSocket 並啟動讀寫 goroutine
func (hub *WebSocketHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	hub.mu.RLock()
	stopped := hub.stopped
	hub.mu.RUnlock()
	if stopped {
		http.Error(w, "伺服器關閉中", http.StatusServiceUnavailable)
		return
	}

	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	c := &Connection{
		id:       uuid.NewString(),
		conn:     conn,
		send:     make(chan []byte, hub.cfg.SendBuffer),
		hub:      hub,
		lastPong: time.Now(),
	}

	hub.mu.Lock()
	hub.connections[c.id] = c
	hub.mu.Unlock()
	hub.router.Connect(c)

	go c.writePump()
	go c.readPump()

	hub.logger.Info("WebSocket 連接建立",
		"conn_id", c.id,
		"remote_addr", r.RemoteAddr)
}

// unregister 移除連接並通知路由清理會話，重複呼叫不做任何事
func (hub *WebSocketHub) unregister(c *Connection) {
	hub.mu.Lock()
	_, exists := hub.connections[c.id]
	delete(hub.connections, c.id)
	hub.mu.Unlock()

	c.closeSend()
	if exists {
		hub.router.Disconnect(c.id)
		hub.logger.Info("WebSocket 連接關閉", "conn_id", c.id)
	}
}

// Stop 關閉所有連接
func (hub *WebSocketHub) Stop() {
	hub.mu.Lock()
	hub.stopped = true
	conns := make([]*Connection, 0, len(hub.connections))
	for _, c := range hub.connections {
		conns = append(conns, c)
	}
	hub.mu.Unlock()

	// 關閉 send 讓 writePump 送出 close frame，readPump 隨後結束並 unregister
	for _, c := range conns {
		c.closeSend()
	}
	hub.logger.Info("WebSocket Hub 已停止", "connections", len(conns))
}

// ConnectionCount 連接數
func (hub *WebSocketHub) ConnectionCount() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.connections)
}

// ID 連接 ID
func (c *Connection) ID() string {
	return c.id
}

// Enqueue 非阻塞寫入發送緩衝
func (c *Connection) Enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// closeSend 確保 channel 只關閉一次
func (c *Connection) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump 讀取客戶端訊息
//
// pongWait 內沒有收到任何訊息（包含 Pong）就關閉連接。
func (c *Connection) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	cfg := c.hub.cfg
	c.conn.SetReadLimit(cfg.ReadLimit)
	if err := c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait)); err != nil {
		c.hub.logger.Error("設置讀取期限失敗", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.lastPong = time.Now()
		c.mu.Unlock()
		return c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("WebSocket 讀取錯誤",
					"error", err,
					"conn_id", c.id)
			}
			return
		}
		if err := c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait)); err != nil {
			return
		}
		if messageType == websocket.TextMessage {
			c.hub.router.HandleMessage(c.id, message)
		}
	}
}

// writePump 寫入訊息與定期 Ping
func (c *Connection) writePump() {
	cfg := c.hub.cfg
	ticker := time.NewTicker(cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait)); err != nil {
				return
			}
			if !ok {
				// 嘗試發送關閉訊息，忽略錯誤（連接可能已關閉）
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Debug("發送訊息失敗", "conn_id", c.id, "error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
