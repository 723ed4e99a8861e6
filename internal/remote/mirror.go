package remote

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"listou/internal/logger"
	"listou/internal/shopping"
	"listou/internal/watch"
)

// Handler receives every document the subscription delivers. ctx is cancelled when the
// subscription is torn down.
type Handler func(ctx context.Context, items []shopping.Item)

type pushJob struct {
	code  string
	items []shopping.Item
}

// Mirror keeps at most one live subscription to the shared list of the current pairing code and
// pushes local commits to it.
type Mirror struct {
	store    DocumentStore
	onUpdate Handler
	log      *zap.Logger

	// scopeMu serializes SetScope and Close; mu guards the fields below and is never held
	// while waiting for a subscription to stop.
	scopeMu sync.Mutex
	mu      sync.Mutex
	code    string
	gen     uint64
	sub     *watch.Subscription
	ready   chan struct{}
	err     error

	queue    []pushJob
	wake     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	inflight sync.WaitGroup
	closed   bool
}

// NewMirror starts the push worker. Call SetScope to open a subscription.
func NewMirror(store DocumentStore, onUpdate Handler, log *zap.Logger) *Mirror {
	m := &Mirror{
		store:    store,
		onUpdate: onUpdate,
		log:      logger.OrNop(log),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go m.run()
	return m
}

// SetScope points the mirror at a pairing code. The previous subscription is stopped and
// awaited before anything else happens; a new one is opened only when code is set and the user
// is authenticated. Calling it with an unchanged scope is a no-op, so a subscription that died
// stays dead until the scope actually changes.
func (m *Mirror) SetScope(code string, authenticated bool) {
	if !authenticated {
		code = ""
	}

	m.scopeMu.Lock()
	defer m.scopeMu.Unlock()

	m.mu.Lock()
	if m.closed || code == m.code {
		m.mu.Unlock()
		return
	}
	old := m.sub
	m.sub = nil
	m.code = code
	m.gen++
	gen := m.gen
	m.err = nil
	m.ready = nil
	m.mu.Unlock()

	// The old callback may be waiting on the list store, so m.mu must not be held here.
	old.Stop()
	if code == "" {
		m.log.Info("shared list subscription closed")
		return
	}

	ready := make(chan struct{})
	var once sync.Once
	markReady := func() { once.Do(func() { close(ready) }) }

	m.mu.Lock()
	m.ready = ready
	m.mu.Unlock()

	sub := watch.Start(context.Background(), func(ctx context.Context) error {
		deliver := watch.Guard(ctx, func(doc Document) {
			m.onUpdate(ctx, doc.Items)
		})
		return m.store.Watch(ctx, code, func(doc Document, exists bool) {
			if exists {
				deliver(doc)
			}
			markReady()
		})
	}, func(err error) {
		m.subscriptionEnded(gen, code, err)
		markReady()
	})

	m.mu.Lock()
	m.sub = sub
	m.mu.Unlock()
	m.log.Info("shared list subscription opened", zap.String("code", code))
}

func (m *Mirror) subscriptionEnded(gen uint64, code string, err error) {
	if err == nil {
		err = ErrSubscriptionClosed
	}
	if errors.Is(err, ErrPermissionDenied) {
		m.log.Warn("shared list not readable, staying local-only", zap.String("code", code), zap.Error(err))
	} else {
		m.log.Error("shared list subscription failed", zap.String("code", code), zap.Error(err))
	}

	m.mu.Lock()
	if m.gen == gen {
		m.err = err
	}
	m.mu.Unlock()
}

// Code returns the pairing code of the current scope, or "" in local-only mode.
func (m *Mirror) Code() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.code
}

// Active reports whether a scope is set and its subscription has not failed.
func (m *Mirror) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.code != "" && m.err == nil
}

// Err returns the error the current subscription died with, if any.
func (m *Mirror) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// AwaitFirst blocks until the current subscription has reported the shared document once,
// or has failed. It returns the subscription error, ctx.Err() on timeout, or nil.
func (m *Mirror) AwaitFirst(ctx context.Context) error {
	m.mu.Lock()
	ready := m.ready
	m.mu.Unlock()
	if ready == nil {
		return nil
	}

	select {
	case <-ready:
		return m.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Push queues an overwrite of the shared document with items. It never blocks on the network;
// failures are logged. Pushes run one at a time in the order they were queued.
func (m *Mirror) Push(items []shopping.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.code == "" {
		return
	}

	m.inflight.Add(1)
	m.queue = append(m.queue, pushJob{code: m.code, items: shopping.Clone(items)})
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Flush waits until every queued push has been attempted.
func (m *Mirror) Flush(ctx context.Context) error {
	drained := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the subscription, attempts the pushes still queued and stops the worker.
func (m *Mirror) Close() {
	m.scopeMu.Lock()
	defer m.scopeMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	old := m.sub
	m.sub = nil
	m.code = ""
	m.gen++
	m.mu.Unlock()

	old.Stop()
	close(m.stop)
	<-m.done
}

func (m *Mirror) run() {
	defer close(m.done)
	for {
		select {
		case <-m.wake:
			m.drain()
		case <-m.stop:
			m.drain()
			return
		}
	}
}

func (m *Mirror) drain() {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return
		}
		job := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		if err := m.store.Put(context.Background(), job.code, job.items); err != nil {
			m.log.Error("failed to push shared list", zap.String("code", job.code), zap.Int("items", len(job.items)), zap.Error(err))
		} else {
			m.log.Debug("pushed shared list", zap.String("code", job.code), zap.Int("items", len(job.items)))
		}
		m.inflight.Done()
	}
}
