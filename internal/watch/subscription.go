// Package watch runs one live subscription in a goroutine and tears it down deterministically.
package watch

import (
	"context"
	"sync"
)

// Subscription is a running watch loop. The zero value is not usable; use Start.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Start runs fn on its own goroutine with a context that Stop cancels.
// onExit, if not nil, receives fn's error unless the subscription was stopped.
func Start(parent context.Context, fn func(ctx context.Context) error, onExit func(error)) *Subscription {
	ctx, cancel := context.WithCancel(parent)
	s := &Subscription{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(s.done)
		err := fn(ctx)
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		if onExit != nil {
			onExit(err)
		}
	}()
	return s
}

// Stop cancels the subscription and waits for its goroutine to return. Once Stop returns,
// fn will not call back again. Stop must not be called from inside fn's callbacks.
func (s *Subscription) Stop() {
	if s == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Done is closed when the goroutine has returned.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns the error fn exited with, if it has exited.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Guard wraps a callback so it is dropped once ctx is cancelled. It narrows the window in which
// a store that is slow to notice cancellation could still deliver an update.
func Guard[T any](ctx context.Context, fn func(T)) func(T) {
	return func(v T) {
		if ctx.Err() != nil {
			return
		}
		fn(v)
	}
}
