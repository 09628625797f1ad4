package snapshot

import (
	"context"
	"sync"
)

// MemoryStore keeps snapshots in process memory. Used in tests and when no
// durable backend is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]*Snapshot
	latest string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Snapshot)}
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, s *Snapshot) error {
	cp := *s
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[s.ID] = &cp
	if cur, ok := m.byID[m.latest]; !ok || !s.TakenAt.Before(cur.TakenAt) {
		m.latest = s.ID
	}
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, id string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// Latest implements Store.
func (m *MemoryStore) Latest(ctx context.Context) (*Snapshot, error) {
	m.mu.RLock()
	id := m.latest
	m.mu.RUnlock()
	if id == "" {
		return nil, ErrNotFound
	}
	return m.Get(ctx, id)
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context, limit int) ([]Summary, error) {
	m.mu.RLock()
	out := make([]Summary, 0, len(m.byID))
	for _, s := range m.byID {
		out = append(out, s.Summary())
	}
	m.mu.RUnlock()
	return newestFirst(out, limit), nil
}
