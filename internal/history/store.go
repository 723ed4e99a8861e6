package history

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned when no entry has the requested ID.
var ErrNotFound = errors.New("history entry not found")

// Store persists entries.
type Store interface {
	Append(ctx context.Context, e Entry) error
	// List returns the entries of scope in no particular order.
	List(ctx context.Context, scope Scope) ([]Entry, error)
	Get(ctx context.Context, id string) (Entry, error)
	Delete(ctx context.Context, id string) error
	// Watch calls fn once the feed is live and again after every change in scope. It blocks
	// until ctx is cancelled (returning nil) or the feed fails.
	Watch(ctx context.Context, scope Scope, fn func()) error
}

// hub fans change signals out to in-process watchers, keyed by scope key.
type hub struct {
	mu       sync.Mutex
	watchers map[string]map[chan struct{}]struct{}
}

func newHub() *hub {
	return &hub{watchers: make(map[string]map[chan struct{}]struct{})}
}

func (h *hub) subscribe(key string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	if h.watchers[key] == nil {
		h.watchers[key] = make(map[chan struct{}]struct{})
	}
	h.watchers[key][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.watchers[key], ch)
		h.mu.Unlock()
	}
}

// notify signals every watcher of keys. Pending signals coalesce.
func (h *hub) notify(keys ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, key := range keys {
		for ch := range h.watchers[key] {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}

// watchHub implements Store.Watch over a hub.
func watchHub(ctx context.Context, h *hub, scope Scope, fn func()) error {
	ch, cancel := h.subscribe(scope.Key())
	defer cancel()

	fn()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ch:
			fn()
		}
	}
}
