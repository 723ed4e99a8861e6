package metrics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listou/internal/database"
)

func newStore(t *testing.T, now time.Time) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "listou.db")
	db, err := database.NewDB(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewStore(db.SQL, nil)
	s.now = func() time.Time { return now }
	return s, path
}

func TestDailyActivity(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)
	s, _ := newStore(t, now)

	events := []Event{
		{Kind: KindLocalChange, Items: 1, Timestamp: now.Add(-26 * time.Hour)},
		{Kind: KindLocalChange, Items: 2},
		{Kind: KindLocalChange, Items: 3},
		{Kind: KindRemoteApplied, Code: "ABC123", Items: 3},
		{Kind: KindForeignAddition, Code: "ABC123", Items: 3},
		{Kind: KindCompleted, Items: 3},
		{Kind: KindLocalChange, Timestamp: now.AddDate(0, 0, -30)},
	}
	for _, e := range events {
		require.NoError(t, s.Record(ctx, e))
	}

	days, err := s.GetDailyActivity(ctx, 7)
	require.NoError(t, err)
	require.Len(t, days, 2)

	assert.Equal(t, DailyActivity{Date: "2025-03-06", LocalChanges: 1}, days[0])
	assert.Equal(t, DailyActivity{
		Date:            "2025-03-07",
		LocalChanges:    2,
		RemoteApplied:   1,
		ForeignAddition: 1,
		Completed:       1,
	}, days[1])
	assert.Equal(t, 5, days[1].Total())
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)
	s, _ := newStore(t, now)

	s.Observe(ctx, Event{Kind: KindLocalChange, Timestamp: now.AddDate(0, 0, -40)})
	s.Observe(ctx, Event{Kind: KindLocalChange, Timestamp: now.AddDate(0, 0, -31)})
	s.Observe(ctx, Event{Kind: KindLocalChange})

	removed, err := s.Cleanup(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	days, err := s.GetDailyActivity(ctx, 365)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, 1, days[0].LocalChanges)
}

func TestGetHealth(t *testing.T) {
	_, path := newStore(t, time.Now())

	h := GetHealth(path)
	assert.Positive(t, h.Goroutines)
	assert.NotEqual(t, "0 B", h.DBSize)
	assert.Equal(t, "0 B", GetHealth(filepath.Join(t.TempDir(), "missing.db")).DBSize)
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 B", humanSize(512))
	assert.Equal(t, "1.5 KB", humanSize(1536))
	assert.Equal(t, "2.0 MB", humanSize(2*1024*1024))
}
