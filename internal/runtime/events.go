package runtime

import (
	"context"
	"time"

	"github.com/aretw0/automata/pkg/domain"
)

// EventType defines the lifecycle notification kind.
type EventType string

const (
	EventBeforeTransition EventType = "beforeTransition"
	EventAfterTransition  EventType = "afterTransition"
	EventDataTransition   EventType = "dataTransition"
	EventFailedTransition EventType = "failedTransition"
	EventStateChanged     EventType = "stateChanged"
)

// EventTypes lists every lifecycle event in emission order of one transition,
// followed by the context change notification.
var EventTypes = []EventType{
	EventBeforeTransition,
	EventFailedTransition,
	EventDataTransition,
	EventAfterTransition,
	EventStateChanged,
}

// Event is the payload of every lifecycle notification.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Automaton string    `json:"automaton"`

	Delta *Delta `json:"delta,omitempty"`
	Omega *Omega `json:"omega,omitempty"`

	// Error is set on failedTransition.
	Error string `json:"error,omitempty"`

	// Changes is set on stateChanged.
	Changes domain.ChangeSet `json:"changes,omitempty"`

	// Duration is the elapsed transition time, set on dataTransition and afterTransition.
	Duration time.Duration `json:"duration,omitempty"`
}

// Listener receives lifecycle events.
type Listener func(ctx context.Context, e Event)

// LifecycleHooks defines callbacks for engine observability.
// Nil callbacks are skipped.
type LifecycleHooks struct {
	OnBeforeTransition func(context.Context, Event)
	OnAfterTransition  func(context.Context, Event)
	OnDataTransition   func(context.Context, Event)
	OnFailedTransition func(context.Context, Event)
	OnStateChanged     func(context.Context, Event)
}

// Listener returns the callback registered for an event type, or nil.
func (h LifecycleHooks) Listener(t EventType) Listener {
	var fn func(context.Context, Event)
	switch t {
	case EventBeforeTransition:
		fn = h.OnBeforeTransition
	case EventAfterTransition:
		fn = h.OnAfterTransition
	case EventDataTransition:
		fn = h.OnDataTransition
	case EventFailedTransition:
		fn = h.OnFailedTransition
	case EventStateChanged:
		fn = h.OnStateChanged
	}
	if fn == nil {
		return nil
	}
	return Listener(fn)
}
