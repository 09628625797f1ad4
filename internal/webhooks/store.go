package webhooks

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a webhook subscription is not found.
var ErrNotFound = errors.New("webhook subscription not found")

// maxDeliveries bounds the delivery log kept by MemoryStore.
const maxDeliveries = 500

// Store persists subscriptions and the delivery log.
type Store interface {
	Create(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, id uuid.UUID) (*Subscription, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*Subscription, error)
	ListByEvent(ctx context.Context, eventType string) ([]*Subscription, error)
	RecordDelivery(ctx context.Context, d *Delivery) error
	// Deliveries returns up to limit attempts, newest first.
	Deliveries(ctx context.Context, limit int) ([]*Delivery, error)
}

// MemoryStore keeps subscriptions in process memory.
type MemoryStore struct {
	mu         sync.RWMutex
	subs       []*Subscription
	deliveries []*Delivery // newest first
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Create implements Store.
func (m *MemoryStore) Create(_ context.Context, sub *Subscription) error {
	cp := *sub
	cp.Events = slices.Clone(sub.Events)
	m.mu.Lock()
	m.subs = append(m.subs, &cp)
	m.mu.Unlock()
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.subs {
		if s.ID == id {
			cp := *s
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.subs {
		if s.ID == id {
			m.subs = slices.Delete(m.subs, i, i+1)
			return nil
		}
	}
	return ErrNotFound
}

// List implements Store. Newest subscriptions come first.
func (m *MemoryStore) List(_ context.Context) ([]*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Subscription, 0, len(m.subs))
	for i := len(m.subs) - 1; i >= 0; i-- {
		cp := *m.subs[i]
		out = append(out, &cp)
	}
	return out, nil
}

// ListByEvent implements Store.
func (m *MemoryStore) ListByEvent(_ context.Context, eventType string) ([]*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Subscription
	for _, s := range m.subs {
		if s.Wants(eventType) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

// RecordDelivery implements Store.
func (m *MemoryStore) RecordDelivery(_ context.Context, d *Delivery) error {
	cp := *d
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries = append([]*Delivery{&cp}, m.deliveries...)
	if len(m.deliveries) > maxDeliveries {
		m.deliveries = m.deliveries[:maxDeliveries]
	}
	return nil
}

// Deliveries implements Store.
func (m *MemoryStore) Deliveries(_ context.Context, limit int) ([]*Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.deliveries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*Delivery, n)
	for i := range n {
		cp := *m.deliveries[i]
		out[i] = &cp
	}
	return out, nil
}
