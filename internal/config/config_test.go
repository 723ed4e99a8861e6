package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromEnv(t *testing.T) {
	// Helper function to set environment variables for a test
	setEnv := func(key, value string) {
		t.Helper()
		t.Setenv(key, value)
	}

	t.Run("Success", func(t *testing.T) {
		setEnv("LISTOU_JWT_SECRET", "secret")
		setEnv("LISTOU_DB_PATH", "/tmp/listou.db")
		setEnv("REDIS_URL", "redis://localhost:6379/0")
		setEnv("LISTOU_SYNC_TIMEOUT", "5s")
		setEnv("TELEGRAM_BOT_TOKEN", "token")
		setEnv("TELEGRAM_CHAT_ID", "42")

		cfg, err := NewFromEnv()
		require.NoError(t, err)
		assert.Equal(t, "secret", cfg.JWTSecret)
		assert.Equal(t, "/tmp/listou.db", cfg.DatabasePath)
		assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
		assert.Equal(t, 5*time.Second, cfg.SyncTimeout)
		assert.Equal(t, int64(42), cfg.TelegramChatID)
		assert.True(t, cfg.TelegramEnabled())
	})

	t.Run("Defaults", func(t *testing.T) {
		setEnv("LISTOU_JWT_SECRET", "secret")
		setEnv("LISTOU_DB_PATH", "")
		setEnv("REDIS_URL", "")
		setEnv("LISTOU_SYNC_TIMEOUT", "")
		setEnv("LISTOU_EXPORT_DIR", "")
		setEnv("TELEGRAM_BOT_TOKEN", "")
		setEnv("TELEGRAM_CHAT_ID", "")

		cfg, err := NewFromEnv()
		require.NoError(t, err)
		assert.Equal(t, defaultDatabasePath, cfg.DatabasePath)
		assert.Equal(t, defaultSyncTimeout, cfg.SyncTimeout)
		assert.Equal(t, defaultExportDir, cfg.ExportDir)
		assert.Empty(t, cfg.RedisURL)
		assert.False(t, cfg.TelegramEnabled())
	})

	t.Run("MissingJWTSecret", func(t *testing.T) {
		setEnv("LISTOU_JWT_SECRET", "")

		_, err := NewFromEnv()
		require.Error(t, err)
		assert.Equal(t, "LISTOU_JWT_SECRET environment variable not set", err.Error())
	})

	t.Run("InvalidChatID", func(t *testing.T) {
		setEnv("LISTOU_JWT_SECRET", "secret")
		setEnv("LISTOU_SYNC_TIMEOUT", "")
		setEnv("TELEGRAM_CHAT_ID", "not-a-number")

		_, err := NewFromEnv()
		require.Error(t, err)
	})

	t.Run("InvalidSyncTimeout", func(t *testing.T) {
		setEnv("LISTOU_JWT_SECRET", "secret")
		setEnv("TELEGRAM_CHAT_ID", "")
		setEnv("LISTOU_SYNC_TIMEOUT", "soon")

		_, err := NewFromEnv()
		require.Error(t, err)
	})
}
