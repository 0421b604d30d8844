package internal_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/koopa0/system-design/competition-room/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// TestLoadConfig 測試配置載入
func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		env      map[string]string
		wantErr  bool
		validate func(t *testing.T, cfg *internal.Config)
	}{
		{
			name: "missing file uses defaults",
			validate: func(t *testing.T, cfg *internal.Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, internal.DefaultGameConfig(), cfg.Game)
				assert.Equal(t, 54*time.Second, cfg.WebSocket.PingPeriod)
				assert.Equal(t, "text", cfg.Log.Format)
			},
		},
		{
			name: "yaml overrides",
			content: `
server:
  port: 9090
game:
  questions_per_game: 5
  question_time_limit: 20s
  countdown_seconds: 5
  require_all_ready: false
log:
  level: debug
`,
			validate: func(t *testing.T, cfg *internal.Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 5, cfg.Game.QuestionsPerGame)
				assert.Equal(t, 20*time.Second, cfg.Game.QuestionTimeLimit)
				assert.Equal(t, 5, cfg.Game.CountdownSeconds)
				assert.False(t, cfg.Game.RequireAllReady)
				assert.Equal(t, 8, cfg.Game.MaxPlayersLimit, "unset fields keep defaults")
				assert.Equal(t, "debug", cfg.Log.Level)
			},
		},
		{
			name:    "env overrides yaml",
			content: "server:\n  port: 9090\n",
			env:     map[string]string{"PORT": "7070", "LOG_FORMAT": "json", "QUESTIONS_PATH": "/tmp/q.yaml"},
			validate: func(t *testing.T, cfg *internal.Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, "json", cfg.Log.Format)
				assert.Equal(t, "/tmp/q.yaml", cfg.Questions.Path)
			},
		},
		{
			name:    "invalid env port",
			env:     map[string]string{"PORT": "abc"},
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			content: "server: [",
			wantErr: true,
		},
		{
			name:    "invalid code length",
			content: "game:\n  code_length: 9\n",
			wantErr: true,
		},
		{
			name:    "ping period not below pong wait",
			content: "websocket:\n  ping_period: 60s\n  pong_wait: 60s\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"PORT", "LOG_LEVEL", "LOG_FORMAT", "QUESTIONS_PATH"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := filepath.Join(t.TempDir(), "missing.yaml")
			if tt.content != "" {
				path = writeConfig(t, tt.content)
			}

			cfg, err := internal.LoadConfig(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validate(t, cfg)
		})
	}
}

// TestGameConfig_Validate 測試競賽規則驗證
func TestGameConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(g *internal.GameConfig)
		wantErr bool
	}{
		{"defaults", func(g *internal.GameConfig) {}, false},
		{"zero countdown allowed", func(g *internal.GameConfig) { g.CountdownSeconds = 0 }, false},
		{"default above limit", func(g *internal.GameConfig) { g.DefaultMaxPlayers = 9 }, true},
		{"no questions", func(g *internal.GameConfig) { g.QuestionsPerGame = 0 }, true},
		{"zero time limit", func(g *internal.GameConfig) { g.QuestionTimeLimit = 0 }, true},
		{"negative grace", func(g *internal.GameConfig) { g.QuestionGrace = -time.Second }, true},
		{"no rooms", func(g *internal.GameConfig) { g.MaxRooms = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := internal.DefaultGameConfig()
			tt.mutate(&g)
			if tt.wantErr {
				assert.Error(t, g.Validate())
				return
			}
			assert.NoError(t, g.Validate())
		})
	}
}
