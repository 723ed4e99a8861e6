package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"listou/internal/logger"
)

// SQLiteStore keeps history in the local database. Watchers are notified in-process, so it only
// serves local-only mode.
type SQLiteStore struct {
	db  *sql.DB
	hub *hub
	log *zap.Logger
}

// NewSQLiteStore creates a new SQLiteStore.
func NewSQLiteStore(d *sql.DB, log *zap.Logger) *SQLiteStore {
	return &SQLiteStore{db: d, hub: newHub(), log: logger.OrNop(log)}
}

const selectColumns = `SELECT id, user_id, casal_id, date, total_items, total_price, saved_by, items FROM history`

// Append inserts a new entry.
func (s *SQLiteStore) Append(ctx context.Context, e Entry) error {
	itemsJSON, err := json.Marshal(itemsToWire(e.Items))
	if err != nil {
		return fmt.Errorf("failed to marshal history items: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO history (id, user_id, casal_id, date, total_items, total_price, saved_by, items) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, e.CasalID, e.Date.UTC().Format(time.RFC3339Nano), e.TotalItems, finite(e.TotalPrice), e.SavedBy, string(itemsJSON))
	if err != nil {
		return fmt.Errorf("failed to insert history entry %s: %w", e.ID, err)
	}

	s.hub.notify(e.ScopeKeys()...)
	return nil
}

// List retrieves the entries of a scope.
func (s *SQLiteStore) List(ctx context.Context, scope Scope) ([]Entry, error) {
	var (
		rows *sql.Rows
		err  error
	)
	switch {
	case scope.CasalID != "":
		rows, err = s.db.QueryContext(ctx, selectColumns+` WHERE casal_id = ?`, scope.CasalID)
	case scope.UserID != "":
		rows, err = s.db.QueryContext(ctx, selectColumns+` WHERE user_id = ?`, scope.UserID)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list history for %s: %w", scope.Key(), err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history rows: %w", err)
	}
	return entries, nil
}

// Get retrieves one entry by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	e, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

// Delete removes one entry.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	e, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete history entry %s: %w", id, err)
	}

	s.hub.notify(e.ScopeKeys()...)
	return nil
}

// Watch implements Store.
func (s *SQLiteStore) Watch(ctx context.Context, scope Scope, fn func()) error {
	return watchHub(ctx, s.hub, scope, fn)
}

type scanner interface {
	Scan(dest ...any) error
}

// scan reads one row. Numeric and date columns are scanned loosely since older rows may hold
// text where a number or timestamp is expected.
func (s *SQLiteStore) scan(row scanner) (Entry, error) {
	var (
		e                  Entry
		date, count, total any
		itemsJSON          string
	)
	if err := row.Scan(&e.ID, &e.OwnerID, &e.CasalID, &date, &count, &total, &e.SavedBy, &itemsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("failed to scan history row: %w", err)
	}
	e.Date = toTime(date)
	e.TotalItems = int(toFloat(count))
	e.TotalPrice = toFloat(total)

	var items []wireItem
	if err := json.Unmarshal([]byte(itemsJSON), &items); err != nil {
		s.log.Warn("ignoring malformed history items", zap.String("id", e.ID), zap.Error(err))
		items = nil
	}
	e.Items = itemsFromWire(items)
	return e, nil
}
