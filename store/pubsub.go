package store

import (
	"context"
	"sync"
)

// PubSub broadcasts messages between processes, e.g. a builder telling every
// dev server to reload.
type PubSub interface {
	Publish(ctx context.Context, channel string, message []byte) error
	// Subscribe registers handler until the returned cancel func is called.
	Subscribe(ctx context.Context, channel string, handler func(message []byte)) (func(), error)
}

type memorySub struct {
	id uint64
	fn func(message []byte)
}

// MemoryPubSub is a single-process PubSub.
type MemoryPubSub struct {
	subscribers map[string][]memorySub
	nextID      uint64
	mu          sync.RWMutex
}

// NewMemoryPubSub creates a new in-memory PubSub.
func NewMemoryPubSub() *MemoryPubSub {
	return &MemoryPubSub{subscribers: make(map[string][]memorySub)}
}

// Publish delivers message to every subscriber of channel. Handlers run on
// their own goroutines so a slow one never blocks the publisher.
func (p *MemoryPubSub) Publish(_ context.Context, channel string, message []byte) error {
	p.mu.RLock()
	subs := make([]memorySub, len(p.subscribers[channel]))
	copy(subs, p.subscribers[channel])
	p.mu.RUnlock()

	for _, sub := range subs {
		go sub.fn(message)
	}
	return nil
}

// Subscribe registers handler on channel.
func (p *MemoryPubSub) Subscribe(_ context.Context, channel string, handler func(message []byte)) (func(), error) {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.subscribers[channel] = append(p.subscribers[channel], memorySub{id: id, fn: handler})
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		subs := p.subscribers[channel]
		for i, sub := range subs {
			if sub.id == id {
				p.subscribers[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}, nil
}
