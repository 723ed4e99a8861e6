package history

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"listou/internal/apperr"
	"listou/internal/logger"
	"listou/internal/watch"
)

// Confirmer asks the user whether an entry may be deleted.
type Confirmer func(e Entry) bool

// Log is the history of one session: it appends entries and keeps a live, sorted copy of the
// entries of the current scope.
type Log struct {
	store Store
	log   *zap.Logger
	now   func() time.Time

	scopeMu sync.Mutex
	sub     *watch.Subscription

	mu        sync.Mutex
	scope     Scope
	entries   []Entry
	listeners []func([]Entry)
}

// NewLog creates a Log over store.
func NewLog(store Store, log *zap.Logger) *Log {
	return &Log{store: store, log: logger.OrNop(log), now: time.Now}
}

// Append snapshots draft into a new entry and writes it.
func (l *Log) Append(ctx context.Context, draft Draft) (Entry, error) {
	if draft.OwnerID == "" {
		return Entry{}, apperr.Validation("history entries need an owner", nil)
	}
	e := newEntry(uuid.NewString(), draft, l.now().UTC().Truncate(time.Millisecond))
	if err := l.store.Append(ctx, e); err != nil {
		return Entry{}, apperr.Operation("save history", err)
	}
	l.log.Info("history entry saved",
		zap.String("id", e.ID), zap.Int("items", e.TotalItems), zap.Float64("total", e.TotalPrice))
	return e, nil
}

// Load queries the entries of scope once, newest first.
func (l *Log) Load(ctx context.Context, scope Scope) ([]Entry, error) {
	entries, err := l.store.List(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	SortNewestFirst(entries)
	return entries, nil
}

// Subscribe keeps Entries in sync with scope, replacing any previous subscription. The old
// subscription is stopped and awaited first. A zero scope only stops it and clears Entries.
func (l *Log) Subscribe(scope Scope) {
	l.scopeMu.Lock()
	defer l.scopeMu.Unlock()

	l.sub.Stop()
	l.sub = nil

	l.mu.Lock()
	l.scope = scope
	l.entries = nil
	listeners := l.listeners
	l.mu.Unlock()
	emit(listeners, nil)

	if scope.IsZero() {
		return
	}

	l.sub = watch.Start(context.Background(), func(ctx context.Context) error {
		return l.store.Watch(ctx, scope, func() { l.refresh(ctx, scope) })
	}, func(err error) {
		l.log.Error("history subscription failed", zap.String("scope", scope.Key()), zap.Error(err))
	})
}

func (l *Log) refresh(ctx context.Context, scope Scope) {
	entries, err := l.store.List(ctx, scope)
	if err != nil {
		if ctx.Err() == nil {
			l.log.Error("failed to refresh history", zap.String("scope", scope.Key()), zap.Error(err))
		}
		return
	}
	SortNewestFirst(entries)

	l.mu.Lock()
	if ctx.Err() != nil || l.scope != scope {
		l.mu.Unlock()
		return
	}
	l.entries = entries
	listeners := l.listeners
	l.mu.Unlock()
	emit(listeners, entries)
}

// OnChange registers a listener for the entries of the subscribed scope.
func (l *Log) OnChange(fn func([]Entry)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// Entries returns the cached entries of the subscribed scope, newest first.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

// Get returns one entry, cached or stored.
func (l *Log) Get(ctx context.Context, id string) (Entry, error) {
	e, err := l.lookup(ctx, id)
	if err != nil {
		return Entry{}, apperr.Operation("load history", err)
	}
	return e, nil
}

// Remove deletes one entry once confirm approves it. It reports whether the entry was deleted.
func (l *Log) Remove(ctx context.Context, id string, confirm Confirmer) (bool, error) {
	e, err := l.lookup(ctx, id)
	if err != nil {
		return false, apperr.Operation("delete history", err)
	}
	if confirm != nil && !confirm(e) {
		return false, nil
	}

	if err := l.store.Delete(ctx, id); err != nil {
		return false, apperr.Operation("delete history", err)
	}

	l.mu.Lock()
	l.entries = slices.DeleteFunc(slices.Clone(l.entries), func(x Entry) bool { return x.ID == id })
	entries := slices.Clone(l.entries)
	listeners := l.listeners
	l.mu.Unlock()
	emit(listeners, entries)

	l.log.Info("history entry deleted", zap.String("id", id))
	return true, nil
}

func (l *Log) lookup(ctx context.Context, id string) (Entry, error) {
	l.mu.Lock()
	for _, e := range l.entries {
		if e.ID == id {
			l.mu.Unlock()
			return e, nil
		}
	}
	l.mu.Unlock()

	e, err := l.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Entry{}, fmt.Errorf("entry %s: %w", id, err)
	}
	return e, err
}

// Close stops the subscription.
func (l *Log) Close() {
	l.scopeMu.Lock()
	defer l.scopeMu.Unlock()
	l.sub.Stop()
	l.sub = nil
}

// SortNewestFirst orders entries by date, newest first. Entries with equal dates keep their order.
func SortNewestFirst(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return b.Date.Compare(a.Date)
	})
}

func emit(listeners []func([]Entry), entries []Entry) {
	for _, fn := range listeners {
		fn(slices.Clone(entries))
	}
}
