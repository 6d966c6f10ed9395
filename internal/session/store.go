package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned by Load for unknown or expired sessions.
var ErrNotFound = errors.New("session: not found")

// Store persists session values by id.
type Store interface {
	Load(ctx context.Context, id string) (map[string]string, error)
	Save(ctx context.Context, id string, values map[string]string, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	values    map[string]string
	expiresAt time.Time
}

// MemoryStore keeps sessions in process. Used for single-instance
// deployments and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, id string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.entries, id)
		return nil, ErrNotFound
	}
	cp := make(map[string]string, len(e.values))
	for k, v := range e.values {
		cp[k] = v
	}
	return cp, nil
}

// Save implements Store. A zero ttl never expires.
func (m *MemoryStore) Save(_ context.Context, id string, values map[string]string, ttl time.Duration) error {
	cp := make(map[string]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	e := memoryEntry{values: cp}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[id] = e
	m.mu.Unlock()
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}
