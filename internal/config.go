package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 整個應用的配置
type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
	} `yaml:"server"`

	Game GameConfig `yaml:"game"`

	WebSocket WebSocketConfig `yaml:"websocket"`

	Questions struct {
		Path string `yaml:"path"` // 空字串使用內建題庫
	} `yaml:"questions"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// GameConfig 競賽規則
type GameConfig struct {
	DefaultMaxPlayers int           `yaml:"default_max_players"`
	MaxPlayersLimit   int           `yaml:"max_players_limit"`
	MinPlayersToStart int           `yaml:"min_players_to_start"`
	MaxRooms          int           `yaml:"max_rooms"`
	QuestionsPerGame  int           `yaml:"questions_per_game"`
	QuestionTimeLimit time.Duration `yaml:"question_time_limit"`
	QuestionGrace     time.Duration `yaml:"question_grace"` // 超時判定額外寬限（網路延遲）
	CountdownSeconds  int           `yaml:"countdown_seconds"`
	AdvanceDelay      time.Duration `yaml:"advance_delay"`
	Retention         time.Duration `yaml:"retention"` // 結束後保留房間供查看結果
	RequireAllReady   bool          `yaml:"require_all_ready"`
	CodeLength        int           `yaml:"code_length"`
	CodeMaxAttempts   int           `yaml:"code_max_attempts"`
}

// WebSocketConfig 連接參數
type WebSocketConfig struct {
	ReadLimit  int64         `yaml:"read_limit"`
	PongWait   time.Duration `yaml:"pong_wait"`
	PingPeriod time.Duration `yaml:"ping_period"`
	WriteWait  time.Duration `yaml:"write_wait"`
	SendBuffer int           `yaml:"send_buffer"`
}

// DefaultConfig 返回默認配置
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 15 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second
	cfg.Server.AllowedOrigins = []string{"*"}

	cfg.Game = DefaultGameConfig()
	cfg.WebSocket = DefaultWebSocketConfig()

	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

// DefaultGameConfig 預設競賽規則
func DefaultGameConfig() GameConfig {
	return GameConfig{
		DefaultMaxPlayers: 4,
		MaxPlayersLimit:   8,
		MinPlayersToStart: 2,
		MaxRooms:          1000,
		QuestionsPerGame:  10,
		QuestionTimeLimit: 30 * time.Second,
		QuestionGrace:     2 * time.Second,
		CountdownSeconds:  3,
		AdvanceDelay:      2 * time.Second,
		Retention:         5 * time.Minute,
		RequireAllReady:   true,
		CodeLength:        6,
		CodeMaxAttempts:   100,
	}
}

// DefaultWebSocketConfig 心跳 54s / 60s
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		ReadLimit:  4096,
		PongWait:   60 * time.Second,
		PingPeriod: 54 * time.Second,
		WriteWait:  10 * time.Second,
		SendBuffer: 256,
	}
}

// LoadConfig 載入配置
//
// 順序：預設值 → .env → YAML 檔（不存在則略過）→ 環境變數 → 驗證。
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()
	if path != "" {
		// #nosec G304 - path 來自命令列參數
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 環境變數覆蓋（部署環境常用）
func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("QUESTIONS_PATH"); v != "" {
		c.Questions.Path = v
	}
	return nil
}

// Validate 檢查配置
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port 超出範圍: %d", c.Server.Port)
	}
	if err := c.Game.Validate(); err != nil {
		return err
	}
	if c.WebSocket.PingPeriod >= c.WebSocket.PongWait {
		return fmt.Errorf("websocket.ping_period 必須小於 pong_wait")
	}
	return nil
}

// Validate 檢查競賽規則
func (g GameConfig) Validate() error {
	switch {
	case g.MinPlayersToStart < 1:
		return fmt.Errorf("game.min_players_to_start 必須 >= 1")
	case g.MaxPlayersLimit < 2:
		return fmt.Errorf("game.max_players_limit 必須 >= 2")
	case g.DefaultMaxPlayers < 2 || g.DefaultMaxPlayers > g.MaxPlayersLimit:
		return fmt.Errorf("game.default_max_players 必須在 2-%d 之間", g.MaxPlayersLimit)
	case g.MaxRooms < 1:
		return fmt.Errorf("game.max_rooms 必須 >= 1")
	case g.QuestionsPerGame < 1:
		return fmt.Errorf("game.questions_per_game 必須 >= 1")
	case g.QuestionTimeLimit <= 0:
		return fmt.Errorf("game.question_time_limit 必須 > 0")
	case g.CountdownSeconds < 0:
		return fmt.Errorf("game.countdown_seconds 不可為負")
	case g.AdvanceDelay < 0 || g.QuestionGrace < 0 || g.Retention < 0:
		return fmt.Errorf("game 計時設定不可為負")
	case g.CodeLength < minCodeLength || g.CodeLength > maxCodeLength:
		return fmt.Errorf("game.code_length 必須在 %d-%d 之間", minCodeLength, maxCodeLength)
	}
	return nil
}
