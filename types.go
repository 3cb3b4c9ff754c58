package automata

import "github.com/aretw0/automata/internal/runtime"

// Core engine types. The runtime lives in an internal package; these aliases are
// the public names.
type (
	Factory         = runtime.Factory
	Automaton       = runtime.Automaton
	AutomatonConfig = runtime.AutomatonConfig
	State           = runtime.State
	StateConfig     = runtime.StateConfig
	View            = runtime.View
	ViewConfig      = runtime.ViewConfig
	Delta           = runtime.Delta
	Omega           = runtime.Omega
	Output          = runtime.Output
	Handler         = runtime.Handler
	CleanUpFunc     = runtime.CleanUpFunc
	RenderFunc      = runtime.RenderFunc
	RenderContext   = runtime.RenderContext
	RenderInput     = runtime.RenderInput
	TransitRequest  = runtime.TransitRequest
	Snapshot        = runtime.Snapshot
	StateInfo       = runtime.StateInfo
	App             = runtime.App
	BaseApp         = runtime.BaseApp
	Event           = runtime.Event
	EventType       = runtime.EventType
	Listener        = runtime.Listener
	LifecycleHooks  = runtime.LifecycleHooks
)

// Lifecycle event types.
const (
	EventBeforeTransition = runtime.EventBeforeTransition
	EventAfterTransition  = runtime.EventAfterTransition
	EventDataTransition   = runtime.EventDataTransition
	EventFailedTransition = runtime.EventFailedTransition
	EventStateChanged     = runtime.EventStateChanged
)

// NewDelta creates a transition request.
func NewDelta(action string, input any, from string) *Delta {
	return runtime.NewDelta(action, input, from)
}

// NewOmega creates a transition result.
func NewOmega(next string, output Output, views []*View, data any) *Omega {
	return runtime.NewOmega(next, output, views, data)
}

// RenderAll renders every view of omega in order.
var RenderAll = runtime.RenderAll

// EventTopic is the bus topic carrying the events of one automaton.
func EventTopic(automaton string) string {
	return runtime.EventTopic(automaton)
}
