package observability

import (
	"context"

	"github.com/aretw0/automata/internal/runtime"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records automaton activity as Prometheus collectors.
type Metrics struct {
	Transitions    *prometheus.CounterVec
	Failures       *prometheus.CounterVec
	Duration       *prometheus.HistogramVec
	ContextChanges *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "automata_transitions_total",
				Help: "Total number of completed transitions",
			},
			[]string{"automaton", "from", "to"},
		),
		Failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "automata_failed_transitions_total",
				Help: "Total number of handler failures routed to the failed state",
			},
			[]string{"automaton", "state", "action"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "automata_transition_duration_seconds",
				Help:    "Duration of transitions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"automaton"},
		),
		ContextChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "automata_context_changes_total",
				Help: "Total number of context paths changed",
			},
			[]string{"automaton"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Transitions, m.Failures, m.Duration, m.ContextChanges)
	}
	return m
}

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() runtime.LifecycleHooks {
	return runtime.LifecycleHooks{
		OnAfterTransition: func(ctx context.Context, e runtime.Event) {
			m.Transitions.WithLabelValues(e.Automaton, e.Delta.From, e.Omega.Next).Inc()
			m.Duration.WithLabelValues(e.Automaton).Observe(e.Duration.Seconds())
		},
		OnFailedTransition: func(ctx context.Context, e runtime.Event) {
			m.Failures.WithLabelValues(e.Automaton, e.Delta.From, e.Delta.Action).Inc()
		},
		OnStateChanged: func(ctx context.Context, e runtime.Event) {
			m.ContextChanges.WithLabelValues(e.Automaton).Add(float64(len(e.Changes)))
		},
	}
}
