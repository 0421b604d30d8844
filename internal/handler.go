package internal

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Handler HTTP 請求處理器
//
// 只提供診斷用的唯讀端點與 WebSocket 入口，所有競賽操作走 WebSocket。
type Handler struct {
	loop      *Loop
	manager   *Manager
	hub       *WebSocketHub
	origins   []string
	startedAt time.Time
	logger    *slog.Logger
}

// NewHandler 創建 HTTP 處理器
func NewHandler(loop *Loop, manager *Manager, hub *WebSocketHub, origins []string, logger *slog.Logger) *Handler {
	return &Handler{
		loop:      loop,
		manager:   manager,
		hub:       hub,
		origins:   origins,
		startedAt: time.Now(),
		logger:    logger,
	}
}

// Routes 設定路由
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(h.recoverer)
	r.Use(h.corsHandler())

	r.Get("/ws", h.hub.ServeWS)

	r.Group(func(r chi.Router) {
		r.Use(h.loggerMiddleware)
		r.Get("/health", h.health)
		r.Route("/rooms", func(r chi.Router) {
			r.Get("/", h.listRooms)
			r.Get("/{code}", h.getRoomDetail)
		})
	})
	return r
}

func (h *Handler) corsHandler() func(http.Handler) http.Handler {
	for _, o := range h.origins {
		if o == "*" {
			return cors.AllowAll().Handler
		}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: h.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
}

// health 健康檢查
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	var rooms int
	err := h.loop.Do(r.Context(), func() {
		rooms = h.manager.RoomCount()
	})
	if err != nil {
		h.jsonResponse(w, map[string]any{
			"status": "unavailable",
			"error":  err.Error(),
		}, http.StatusServiceUnavailable)
		return
	}

	h.jsonResponse(w, map[string]any{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"rooms":          rooms,
		"connections":    h.hub.ConnectionCount(),
	}, http.StatusOK)
}

// listRooms 列出房間
func (h *Handler) listRooms(w http.ResponseWriter, r *http.Request) {
	var rooms []RoomSummary
	if err := h.loop.Do(r.Context(), func() {
		rooms = h.manager.Summaries()
	}); err != nil {
		h.errorResponse(w, err, http.StatusServiceUnavailable)
		return
	}

	h.jsonResponse(w, map[string]any{
		"rooms": rooms,
		"total": len(rooms),
	}, http.StatusOK)
}

// getRoomDetail 獲取房間詳情
func (h *Handler) getRoomDetail(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var (
		detail  RoomDetail
		findErr error
	)
	if err := h.loop.Do(r.Context(), func() {
		detail, findErr = h.manager.Detail(code)
	}); err != nil {
		h.errorResponse(w, err, http.StatusServiceUnavailable)
		return
	}
	if errors.Is(findErr, ErrRoomNotFound) {
		h.errorResponse(w, findErr, http.StatusNotFound)
		return
	}
	if findErr != nil {
		h.errorResponse(w, findErr, http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, detail, http.StatusOK)
}

// jsonResponse 返回 JSON 響應
func (h *Handler) jsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("編碼 JSON 失敗", "error", err)
	}
}

// errorResponse 返回錯誤響應
func (h *Handler) errorResponse(w http.ResponseWriter, err error, status int) {
	h.jsonResponse(w, ErrorPayload{
		Code:    ErrorCode(err),
		Message: err.Error(),
	}, status)
}

// loggerMiddleware 日誌中間件
func (h *Handler) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// 包裝 ResponseWriter 以獲取狀態碼
		ww := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(ww, r)

		h.logger.Info("HTTP 請求",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.statusCode,
			"duration", time.Since(start))
	})
}

// recoverer panic 恢復中間件
func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.logger.Error("處理請求時發生 panic",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path)

				h.errorResponse(w, ErrInternal, http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// responseWriter 包裝 ResponseWriter 以獲取狀態碼
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
