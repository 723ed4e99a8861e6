// Package kvstore is the durable string-keyed store that survives process restarts.
// Reads never fail: a missing or malformed value falls back to the caller's default.
package kvstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"listou/internal/logger"
	"listou/internal/shopping"
)

// Well-known keys.
const (
	KeyItems   = "shopping-items"
	KeyTheme   = "theme"
	KeyUser    = "user"
	KeyCasalID = "casalId"
)

// Theme values.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Store persists values in the kv table.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// NewStore creates a Store on an open, migrated database.
func NewStore(db *sql.DB, log *zap.Logger) *Store {
	return &Store{db: db, log: logger.OrNop(log)}
}

// Get returns the raw value and whether it exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return value, true, nil
}

// Set writes a raw value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// GetJSON decodes the value at key into v. It reports false, leaving v untouched,
// when the key is missing, unreadable or malformed.
func (s *Store) GetJSON(ctx context.Context, key string, v any) bool {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		s.log.Warn("local storage read failed, using default", zap.String("key", key), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		s.log.Warn("malformed local value, using default", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// SetJSON encodes v and stores it at key.
func (s *Store) SetJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}

// LoadItems returns the persisted list, or nil when nothing usable is stored.
func (s *Store) LoadItems(ctx context.Context) []shopping.Item {
	var items []shopping.Item
	if !s.GetJSON(ctx, KeyItems, &items) {
		return nil
	}
	return items
}

// SaveItems persists the list. A nil list is stored as an empty array.
func (s *Store) SaveItems(ctx context.Context, items []shopping.Item) error {
	if items == nil {
		items = []shopping.Item{}
	}
	return s.SetJSON(ctx, KeyItems, items)
}

// Theme returns the stored theme; anything other than "dark" reads as light.
func (s *Store) Theme(ctx context.Context) string {
	raw, ok, err := s.Get(ctx, KeyTheme)
	if err != nil || !ok || raw != ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// SetTheme stores the theme preference.
func (s *Store) SetTheme(ctx context.Context, theme string) error {
	if theme != ThemeDark {
		theme = ThemeLight
	}
	return s.Set(ctx, KeyTheme, theme)
}

// CasalID returns the stored pairing code, or "" in local-only mode.
func (s *Store) CasalID(ctx context.Context) string {
	raw, ok, err := s.Get(ctx, KeyCasalID)
	if err != nil {
		s.log.Warn("local storage read failed, using default", zap.String("key", KeyCasalID), zap.Error(err))
		return ""
	}
	if !ok {
		return ""
	}
	return raw
}

// SetCasalID stores the pairing code; an empty code clears it.
func (s *Store) SetCasalID(ctx context.Context, code string) error {
	if code == "" {
		return s.Delete(ctx, KeyCasalID)
	}
	return s.Set(ctx, KeyCasalID, code)
}
