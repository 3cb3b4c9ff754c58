// Package redis provides a ports.EventBus backed by Redis pub/sub.
package redis

import (
	"context"
	"fmt"

	"github.com/aretw0/automata/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Bus implements ports.EventBus using Redis PUBLISH/SUBSCRIBE.
type Bus struct {
	client *backend.Client
	prefix string
}

type Option func(*Bus)

// WithPrefix sets the channel prefix prepended to every topic.
func WithPrefix(prefix string) Option {
	return func(b *Bus) {
		b.prefix = prefix
	}
}

// New creates a new Redis bus with options.
func New(address, password string, db int, opts ...Option) *Bus {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis bus from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Bus {
	bus := &Bus{
		client: client,
		prefix: "automata:",
	}
	for _, opt := range opts {
		opt(bus)
	}
	return bus
}

// Publish implements ports.EventBus.
func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.client.Publish(ctx, b.prefix+topic, payload).Err(); err != nil {
		return fmt.Errorf("redis publish to '%s' failed: %w", topic, err)
	}
	return nil
}

// Subscribe implements ports.EventBus. The subscription is confirmed before it
// returns, so messages published afterwards are delivered.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan ports.Message, error) {
	sub := b.client.Subscribe(ctx, b.prefix+topic)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe to '%s' failed: %w", topic, err)
	}

	out := make(chan ports.Message)
	go func() {
		defer close(out)
		defer sub.Close()

		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- ports.Message{Topic: topic, Payload: []byte(msg.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close closes the underlying client.
func (b *Bus) Close() error {
	return b.client.Close()
}
