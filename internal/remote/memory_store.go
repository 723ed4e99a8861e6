package remote

import (
	"context"
	"sync"
	"time"

	"listou/internal/shopping"
)

// MemoryStore is an in-process DocumentStore. Every watcher sees the latest version; a slow
// watcher may skip intermediate versions, which is fine for whole-document state.
type MemoryStore struct {
	mu       sync.Mutex
	docs     map[string]Document
	watchers map[string]map[chan Document]struct{}
	denied   map[string]bool
	putErr   error
	puts     int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string]Document),
		watchers: make(map[string]map[chan Document]struct{}),
		denied:   make(map[string]bool),
	}
}

// Deny makes Watch on code fail with ErrPermissionDenied.
func (m *MemoryStore) Deny(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denied[code] = true
}

// FailPuts makes every Put return err; nil restores normal behaviour.
func (m *MemoryStore) FailPuts(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putErr = err
}

// Document returns the stored document for code.
func (m *MemoryStore) Document(code string) (Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[code]
	return cloneDoc(doc), ok
}

// Puts returns how many writes succeeded.
func (m *MemoryStore) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

// Watchers returns how many live watchers code has.
func (m *MemoryStore) Watchers(code string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watchers[code])
}

// Put stores the document and fans it out to the watchers of code.
func (m *MemoryStore) Put(_ context.Context, code string, items []shopping.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}

	doc := Document{Items: shopping.Clone(items), UpdatedAt: time.Now().UTC()}
	m.docs[code] = doc
	m.puts++
	for ch := range m.watchers[code] {
		offerLatest(ch, cloneDoc(doc))
	}
	return nil
}

// Watch implements DocumentStore.
func (m *MemoryStore) Watch(ctx context.Context, code string, fn func(Document, bool)) error {
	m.mu.Lock()
	if m.denied[code] {
		m.mu.Unlock()
		return ErrPermissionDenied
	}
	ch := make(chan Document, 16)
	if m.watchers[code] == nil {
		m.watchers[code] = make(map[chan Document]struct{})
	}
	m.watchers[code][ch] = struct{}{}
	doc, exists := m.docs[code]
	if exists {
		ch <- cloneDoc(doc)
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.watchers[code], ch)
		m.mu.Unlock()
	}()

	if !exists {
		fn(Document{}, false)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case doc := <-ch:
			fn(doc, true)
		}
	}
}

// offerLatest sends doc, evicting the oldest queued version when the buffer is full.
func offerLatest(ch chan Document, doc Document) {
	for {
		select {
		case ch <- doc:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func cloneDoc(doc Document) Document {
	return Document{Items: shopping.Clone(doc.Items), UpdatedAt: doc.UpdatedAt}
}
