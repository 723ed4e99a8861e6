package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultDatabasePath = "data/listou.db"
	defaultSyncTimeout  = 3 * time.Second
	defaultExportDir    = "."
)

// Config holds the configuration for the application.
type Config struct {
	JWTSecret    string
	DatabasePath string
	LogEnv       string

	// RedisURL points at the shared document store. Empty means local-only mode.
	RedisURL string

	// SyncTimeout bounds how long a one-shot command waits for the first remote document.
	SyncTimeout time.Duration

	ExportDir string

	// Telegram Config (optional)
	TelegramBotToken string
	TelegramChatID   int64
}

// Load reads a .env file when present and then builds the Config from the environment.
func Load() (*Config, error) {
	// A missing .env is fine; real deployments set the variables directly.
	_ = godotenv.Load()
	return NewFromEnv()
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	jwtSecret := os.Getenv("LISTOU_JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("LISTOU_JWT_SECRET environment variable not set")
	}

	dbPath := os.Getenv("LISTOU_DB_PATH")
	if dbPath == "" {
		dbPath = defaultDatabasePath
	}

	syncTimeout := defaultSyncTimeout
	if raw := os.Getenv("LISTOU_SYNC_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid LISTOU_SYNC_TIMEOUT %q: %w", raw, err)
		}
		syncTimeout = d
	}

	exportDir := os.Getenv("LISTOU_EXPORT_DIR")
	if exportDir == "" {
		exportDir = defaultExportDir
	}

	// Telegram Config (Optional, both values are needed to send anything)
	telegramBotToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	var telegramChatID int64
	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", raw, err)
		}
		telegramChatID = id
	}

	return &Config{
		JWTSecret:        jwtSecret,
		DatabasePath:     dbPath,
		LogEnv:           os.Getenv("LOG_ENV"),
		RedisURL:         os.Getenv("REDIS_URL"),
		SyncTimeout:      syncTimeout,
		ExportDir:        exportDir,
		TelegramBotToken: telegramBotToken,
		TelegramChatID:   telegramChatID,
	}, nil
}

// TelegramEnabled reports whether both Telegram settings are present.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}
