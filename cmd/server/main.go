package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/koopa0/system-design/competition-room/internal"
)

func main() {
	// 解析命令行參數
	var (
		configPath = flag.String("config", "config.yaml", "配置檔路徑")
		port       = flag.Int("port", 0, "服務器端口（覆蓋配置檔）")
		logLevel   = flag.String("log-level", "", "日誌級別 (debug, info, warn, error)")
		logFormat  = flag.String("log-format", "", "日誌格式 (text, json)")
	)
	flag.Parse()

	cfg, err := internal.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "載入配置失敗: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}

	// 設置日誌
	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg, logger); err != nil {
		logger.Error("服務器異常結束", "error", err)
		os.Exit(1)
	}
}

func run(cfg *internal.Config, logger *slog.Logger) error {
	bank, err := internal.LoadQuestionBank(cfg.Questions.Path)
	if err != nil {
		return fmt.Errorf("load question bank: %w", err)
	}
	if bank.Size() < cfg.Game.QuestionsPerGame {
		logger.Warn("題庫題數少於每局題數", "bank", bank.Size(), "per_game", cfg.Game.QuestionsPerGame)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 事件迴圈與協調器
	loop := internal.NewLoop(0, logger)
	broker := internal.NewBroker(logger)
	sched := internal.NewTimerScheduler(loop, broker.Apply, logger)
	manager := internal.NewManager(cfg.Game, bank, sched, logger)
	router := internal.NewRouter(loop, manager, broker, logger)

	loopCtx, cancelLoop := context.WithCancel(context.Background())
	defer cancelLoop()
	go loop.Run(loopCtx)

	// 傳輸層
	hub := internal.NewWebSocketHub(router, cfg.WebSocket, cfg.Server.AllowedOrigins, logger)
	handler := internal.NewHandler(loop, manager, hub, cfg.Server.AllowedOrigins, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("競賽房間服務器啟動",
			"port", cfg.Server.Port,
			"questions", bank.Size(),
			"log_level", cfg.Log.Level,
			"log_format", cfg.Log.Format)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		logger.Info("收到關閉信號，開始優雅關閉...")
	}

	// 優雅關閉
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// 停止接受新連接
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("服務器關閉失敗", "error", err)
	}

	// 通知所有房間關閉
	if err := loop.Do(shutdownCtx, func() {
		broker.Apply(manager.Shutdown())
	}); err != nil {
		logger.Error("關閉房間失敗", "error", err)
	}
	sched.StopAll()

	// 關閉 WebSocket 連接，等待斷線清理排入迴圈
	hub.Stop()
	waitConnections(shutdownCtx, hub)

	loop.Stop()
	logger.Info("服務器已關閉")
	return nil
}

// waitConnections 等待所有連接結束或逾時
func waitConnections(ctx context.Context, hub *internal.WebSocketHub) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for hub.ConnectionCount() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// setupLogger 設置日誌
func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: level == "debug",
		})
	} else {
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			AddSource:  level == "debug", // debug 模式顯示源碼位置
			TimeFormat: time.TimeOnly,
		})
	}

	return slog.New(handler)
}
