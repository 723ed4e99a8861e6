package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDB_AppliesMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "listou.db")

	db, err := NewDB(path, nil)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"kv", "users", "history", "activity"} {
		var name string
		err := db.SQL.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, "table %s", table)
		assert.Equal(t, table, name)
	}
}

func TestNewDB_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listou.db")

	first, err := NewDB(path, nil)
	require.NoError(t, err)
	_, err = first.SQL.Exec(`INSERT INTO kv (key, value) VALUES ('theme', 'dark')`)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// A second open finds every migration applied and keeps the data.
	second, err := NewDB(path, nil)
	require.NoError(t, err)
	defer second.Close()

	var value string
	require.NoError(t, second.SQL.QueryRow(`SELECT value FROM kv WHERE key = 'theme'`).Scan(&value))
	assert.Equal(t, "dark", value)
}
