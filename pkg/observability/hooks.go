package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/automata/internal/runtime"
)

// Combine fans every event out to each hook set in order. Nil callbacks are skipped.
func Combine(hooks ...runtime.LifecycleHooks) runtime.LifecycleHooks {
	fanout := func(t runtime.EventType) func(context.Context, runtime.Event) {
		var listeners []runtime.Listener
		for _, h := range hooks {
			if l := h.Listener(t); l != nil {
				listeners = append(listeners, l)
			}
		}
		if len(listeners) == 0 {
			return nil
		}
		return func(ctx context.Context, e runtime.Event) {
			for _, l := range listeners {
				l(ctx, e)
			}
		}
	}

	return runtime.LifecycleHooks{
		OnBeforeTransition: fanout(runtime.EventBeforeTransition),
		OnAfterTransition:  fanout(runtime.EventAfterTransition),
		OnDataTransition:   fanout(runtime.EventDataTransition),
		OnFailedTransition: fanout(runtime.EventFailedTransition),
		OnStateChanged:     fanout(runtime.EventStateChanged),
	}
}

// LogHooks logs transitions at Info, failures at Warn and context changes at Debug.
func LogHooks(logger *slog.Logger) runtime.LifecycleHooks {
	return runtime.LifecycleHooks{
		OnAfterTransition: func(ctx context.Context, e runtime.Event) {
			logger.InfoContext(ctx, "transition",
				"automaton", e.Automaton,
				"from", e.Delta.From,
				"to", e.Omega.Next,
				"action", e.Delta.Action,
				"duration", e.Duration,
			)
		},
		OnFailedTransition: func(ctx context.Context, e runtime.Event) {
			logger.WarnContext(ctx, "transition_failed",
				"automaton", e.Automaton,
				"from", e.Delta.From,
				"action", e.Delta.Action,
				"err", e.Error,
			)
		},
		OnStateChanged: func(ctx context.Context, e runtime.Event) {
			logger.DebugContext(ctx, "context_changed",
				"automaton", e.Automaton,
				"paths", e.Changes.Paths(),
			)
		},
	}
}
