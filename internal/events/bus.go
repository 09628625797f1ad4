// Package events fans freshly mined blocks out to live subscribers such as
// the explorer websocket feed.
package events

import (
	"sync"

	"github.com/tarlanskakov/patenr-ali-sh/internal/chain"
)

const subscriberBuffer = 16

// Bus is a non-blocking publish/subscribe hub for appended blocks. A slow
// subscriber misses blocks rather than stalling the publisher.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[int]chan chain.Block
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan chain.Block)}
}

// Subscribe registers a subscriber. The returned cancel func removes it and
// closes the channel; it is safe to call more than once.
func (b *Bus) Subscribe() (<-chan chain.Block, func()) {
	ch := make(chan chain.Block, subscriberBuffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers blk to every subscriber with room in its buffer.
func (b *Bus) Publish(blk chain.Block) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- blk:
		default:
		}
	}
}

// Len returns the number of active subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
