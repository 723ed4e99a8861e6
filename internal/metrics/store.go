package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"listou/internal/logger"
)

// timeLayout is fixed-width so stored timestamps compare as text.
const timeLayout = "2006-01-02 15:04:05.000"

// Kind names a recorded activity.
type Kind string

const (
	// KindLocalChange is a local edit of the list.
	KindLocalChange Kind = "local_change"
	// KindRemoteApplied is a shared document accepted into the local list.
	KindRemoteApplied Kind = "remote_applied"
	// KindForeignAddition is an alert about an item the partner added.
	KindForeignAddition Kind = "foreign_addition"
	// KindCompleted is a list saved to history.
	KindCompleted Kind = "completed"
)

// Event records one list activity.
type Event struct {
	Kind      Kind
	Code      string
	Items     int
	Timestamp time.Time
}

// Store handles persistence of activity events to SQLite.
type Store struct {
	db  *sql.DB
	log *zap.Logger
	now func() time.Time
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sql.DB, log *zap.Logger) *Store {
	return &Store{db: db, log: logger.OrNop(log), now: time.Now}
}

// Record saves an event to the database.
func (s *Store) Record(ctx context.Context, e Event) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activity (kind, code, items, created_at) VALUES (?, ?, ?, ?)`,
		string(e.Kind), e.Code, e.Items, ts.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// Observe records e and only logs a failure. Use it where activity must never block the list.
func (s *Store) Observe(ctx context.Context, e Event) {
	if err := s.Record(ctx, e); err != nil {
		s.log.Warn("activity not recorded", zap.String("kind", string(e.Kind)), zap.Error(err))
	}
}

// DailyActivity holds event counts for a single day.
type DailyActivity struct {
	Date            string
	LocalChanges    int
	RemoteApplied   int
	ForeignAddition int
	Completed       int
}

// Total is the number of events of the day.
func (d DailyActivity) Total() int {
	return d.LocalChanges + d.RemoteApplied + d.ForeignAddition + d.Completed
}

// GetDailyActivity retrieves counts for the last N days, oldest day first.
func (s *Store) GetDailyActivity(ctx context.Context, days int) ([]DailyActivity, error) {
	since := s.now().AddDate(0, 0, -days).UTC().Format(timeLayout)
	rows, err := s.db.QueryContext(ctx,
		`SELECT substr(created_at, 1, 10) AS day, kind, COUNT(*)
		   FROM activity
		  WHERE created_at >= ?
		  GROUP BY day, kind
		  ORDER BY day`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	var results []DailyActivity
	for rows.Next() {
		var (
			day, kind string
			count     int
		)
		if err := rows.Scan(&day, &kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if len(results) == 0 || results[len(results)-1].Date != day {
			results = append(results, DailyActivity{Date: day})
		}
		d := &results[len(results)-1]
		switch Kind(kind) {
		case KindLocalChange:
			d.LocalChanges = count
		case KindRemoteApplied:
			d.RemoteApplied = count
		case KindForeignAddition:
			d.ForeignAddition = count
		case KindCompleted:
			d.Completed = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read activity: %w", err)
	}
	return results, nil
}

// Cleanup removes records older than the specified number of days.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := s.now().AddDate(0, 0, -olderThanDays).UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx, `DELETE FROM activity WHERE created_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up activity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count removed activity: %w", err)
	}
	return n, nil
}
