package ports

import (
	"context"
	"errors"
)

// ErrBusClosed is returned by an EventBus that has been closed.
var ErrBusClosed = errors.New("event bus closed")

// Message is a payload received from a topic.
type Message struct {
	Topic   string
	Payload []byte
}

// EventBus is a publish/subscribe transport for encoded events.
type EventBus interface {
	// Publish delivers payload to the current subscribers of topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe streams the messages of topic until ctx is done, then closes the channel.
	Subscribe(ctx context.Context, topic string) (<-chan Message, error)
}
