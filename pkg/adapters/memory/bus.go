// Package memory provides an in-process ports.EventBus.
package memory

import (
	"context"
	"sync"

	"github.com/aretw0/automata/pkg/ports"
)

// Bus is an in-memory, non-persistent EventBus.
// Slow subscribers lose messages once their buffer is full; Publish never blocks.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[chan ports.Message]struct{}
	size   int
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// Option configures a Bus.
type Option func(*Bus)

// WithBufferSize sets the per-subscriber channel capacity (default 64).
func WithBufferSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.size = n
		}
	}
}

// NewBus creates an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subs: make(map[string]map[chan ports.Message]struct{}),
		size: 64,
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish implements ports.EventBus.
func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ports.ErrBusClosed
	}

	msg := ports.Message{Topic: topic, Payload: append([]byte(nil), payload...)}
	for ch := range b.subs[topic] {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe implements ports.EventBus.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan ports.Message, error) {
	ch := make(chan ports.Message, b.size)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ports.ErrBusClosed
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[chan ports.Message]struct{})
	}
	b.subs[topic][ch] = struct{}{}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		select {
		case <-ctx.Done():
			b.remove(topic, ch)
		case <-b.done:
		}
	}()
	return ch, nil
}

func (b *Bus) remove(topic string, ch chan ports.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[topic][ch]; !ok {
		return
	}
	delete(b.subs[topic], ch)
	if len(b.subs[topic]) == 0 {
		delete(b.subs, topic)
	}
	close(ch)
}

// Subscribers returns the number of live subscriptions on topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Close closes every subscription and waits for their watchers to exit.
// Further calls fail with ports.ErrBusClosed.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	for topic, chans := range b.subs {
		for ch := range chans {
			close(ch)
		}
		delete(b.subs, topic)
	}
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}
