// Package liststore owns the local copy of the active shopping list.
//
// Local mutations (Add, AddMany, Update, ToggleBought, Remove, Clear) persist the new list and
// then hand it to the push hook. Replace is the only entry point for a remote document accepted
// by the reconciler: it persists but never pushes, so two paired clients cannot echo each other
// forever.
package liststore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"listou/internal/apperr"
	"listou/internal/logger"
	"listou/internal/shopping"
)

// ErrNotFound is returned when no item has the requested ID.
var ErrNotFound = errors.New("item not found")

// Origin tells listeners where a change came from.
type Origin int

const (
	OriginLocal Origin = iota
	OriginRemote
)

func (o Origin) String() string {
	if o == OriginRemote {
		return "remote"
	}
	return "local"
}

// Change is delivered to listeners after every commit.
type Change struct {
	Items  []shopping.Item
	Origin Origin
}

// Persister writes the list to durable local storage.
type Persister interface {
	SaveItems(ctx context.Context, items []shopping.Item) error
}

// Pusher receives every locally committed list. It must not block.
type Pusher func(items []shopping.Item)

// Store holds the current list.
type Store struct {
	mu        sync.Mutex
	items     []shopping.Item
	persist   Persister
	push      Pusher
	listeners []func(Change)
	log       *zap.Logger
}

// New creates a Store seeded with the list loaded from local storage.
func New(initial []shopping.Item, persist Persister, log *zap.Logger) *Store {
	return &Store{
		items:   shopping.Clone(initial),
		persist: persist,
		log:     logger.OrNop(log),
	}
}

// SetPusher installs the push hook; nil disables pushing (local-only mode).
func (s *Store) SetPusher(p Pusher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.push = p
}

// OnChange registers a listener called after each commit, outside the store lock.
func (s *Store) OnChange(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Items returns a copy of the current list.
func (s *Store) Items() []shopping.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return shopping.Clone(s.items)
}

// Len returns the number of items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Add appends one item. An empty ID is filled in; a duplicate ID is rejected.
func (s *Store) Add(ctx context.Context, item shopping.Item) (shopping.Item, error) {
	added, err := s.AddMany(ctx, []shopping.Item{item})
	if err != nil {
		return shopping.Item{}, err
	}
	return added[0], nil
}

// AddMany appends items in order as a single commit.
func (s *Store) AddMany(ctx context.Context, items []shopping.Item) ([]shopping.Item, error) {
	if len(items) == 0 {
		return nil, nil
	}

	var added []shopping.Item
	err := s.mutate(ctx, func(cur []shopping.Item) ([]shopping.Item, error) {
		next := make([]shopping.Item, len(cur), len(cur)+len(items))
		copy(next, cur)
		for _, item := range items {
			item = item.Clone()
			if item.ID == "" {
				item.ID = shopping.NewID()
			}
			if err := shopping.Validate(item); err != nil {
				return nil, apperr.Validation("invalid item", err)
			}
			if shopping.IndexOf(next, item.ID) >= 0 {
				return nil, apperr.Validation(fmt.Sprintf("duplicate item id %s", item.ID), nil)
			}
			next = append(next, item)
			added = append(added, item.Clone())
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// Update applies a partial update to one item.
func (s *Store) Update(ctx context.Context, id string, patch shopping.Patch) (shopping.Item, error) {
	var updated shopping.Item
	err := s.mutate(ctx, func(cur []shopping.Item) ([]shopping.Item, error) {
		idx := shopping.IndexOf(cur, id)
		if idx < 0 {
			return nil, ErrNotFound
		}
		item := patch.Apply(cur[idx])
		if err := shopping.Validate(item); err != nil {
			return nil, apperr.Validation("invalid item", err)
		}
		next := shopping.Clone(cur)
		next[idx] = item
		updated = item.Clone()
		return next, nil
	})
	return updated, err
}

// ToggleBought flips the purchased flag of one item.
func (s *Store) ToggleBought(ctx context.Context, id string) (shopping.Item, error) {
	var toggled shopping.Item
	err := s.mutate(ctx, func(cur []shopping.Item) ([]shopping.Item, error) {
		idx := shopping.IndexOf(cur, id)
		if idx < 0 {
			return nil, ErrNotFound
		}
		next := shopping.Clone(cur)
		next[idx].Bought = !next[idx].Bought
		toggled = next[idx].Clone()
		return next, nil
	})
	return toggled, err
}

// Remove deletes one item.
func (s *Store) Remove(ctx context.Context, id string) error {
	return s.mutate(ctx, func(cur []shopping.Item) ([]shopping.Item, error) {
		idx := shopping.IndexOf(cur, id)
		if idx < 0 {
			return nil, ErrNotFound
		}
		next := make([]shopping.Item, 0, len(cur)-1)
		next = append(next, shopping.Clone(cur[:idx])...)
		next = append(next, shopping.Clone(cur[idx+1:])...)
		return next, nil
	})
}

// Clear empties the list.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, func([]shopping.Item) ([]shopping.Item, error) {
		return []shopping.Item{}, nil
	})
}

// Replace installs a list accepted from the remote document as-is. It never pushes.
func (s *Store) Replace(ctx context.Context, items []shopping.Item) {
	s.mu.Lock()
	s.items = shopping.Clone(items)
	snapshot := shopping.Clone(s.items)
	s.save(ctx, snapshot)
	listeners := s.listeners
	s.mu.Unlock()

	notifyAll(listeners, Change{Items: snapshot, Origin: OriginRemote})
}

func (s *Store) mutate(ctx context.Context, fn func(cur []shopping.Item) ([]shopping.Item, error)) error {
	s.mu.Lock()
	next, err := fn(s.items)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.items = next
	snapshot := shopping.Clone(next)
	s.save(ctx, snapshot)
	// Push under the lock so pushes are queued in commit order.
	if s.push != nil {
		s.push(shopping.Clone(next))
	}
	listeners := s.listeners
	s.mu.Unlock()

	notifyAll(listeners, Change{Items: snapshot, Origin: OriginLocal})
	return nil
}

// save writes through to local storage. Failures are logged; the in-memory list stays authoritative.
func (s *Store) save(ctx context.Context, items []shopping.Item) {
	if s.persist == nil {
		return
	}
	if err := s.persist.SaveItems(ctx, items); err != nil {
		s.log.Error("failed to persist shopping list", zap.Int("items", len(items)), zap.Error(err))
	}
}

func notifyAll(listeners []func(Change), c Change) {
	for _, fn := range listeners {
		fn(Change{Items: shopping.Clone(c.Items), Origin: c.Origin})
	}
}
