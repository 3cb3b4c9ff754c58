package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownState is returned when a state name is not registered in an automaton.
	ErrUnknownState = errors.New("unknown state")

	// ErrUnknownAutomaton is returned when an automaton name is not registered in a factory.
	ErrUnknownAutomaton = errors.New("unknown automaton")

	// ErrNotInitialized is returned when an automaton transits before Init.
	ErrNotInitialized = errors.New("automaton not initialized")

	// ErrUnmatchedAction marks an action the active state does not define.
	ErrUnmatchedAction = errors.New("unmatched action")

	// ErrHandlerFailed marks an action handler that returned an error or panicked.
	ErrHandlerFailed = errors.New("action handler failed")

	// ErrNoMatchingTransition is returned when no automaton accepts a routed transition.
	ErrNoMatchingTransition = errors.New("no matching transition")

	// ErrDuplicateRegistration is returned when a name is registered twice.
	ErrDuplicateRegistration = errors.New("duplicate registration")

	// ErrMissingRender is returned when a view is created without a render function.
	ErrMissingRender = errors.New("missing render function")

	// ErrInvalidName is returned for empty names and nil handlers.
	ErrInvalidName = errors.New("invalid name")

	// ErrInvalidPath is returned when a context path crosses a non-map value.
	ErrInvalidPath = errors.New("invalid context path")

	// ErrTransitionInProgress is returned in reject mode when a transit is already running.
	ErrTransitionInProgress = errors.New("transition in progress")

	// ErrTransitionTimeout marks a handler that exceeded the transition deadline.
	ErrTransitionTimeout = errors.New("transition timed out")

	// ErrTransitionAborted is returned when the caller cancels a running transit.
	// The automaton stays in the state it was in.
	ErrTransitionAborted = errors.New("transition aborted")
)

// UnmatchedActionError is the diagnostic payload of the per-state fallback.
type UnmatchedActionError struct {
	State  string `json:"state"`
	Action string `json:"action"`
}

func (e *UnmatchedActionError) Error() string {
	return fmt.Sprintf("state '%s' does not define action '%s'", e.State, e.Action)
}

func (e *UnmatchedActionError) Unwrap() error {
	return ErrUnmatchedAction
}

// HandlerError wraps a failure raised by an action handler.
type HandlerError struct {
	State  string
	Action string
	Err    error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("action '%s' failed in state '%s': %v", e.Action, e.State, e.Err)
}

// Unwrap exposes both ErrHandlerFailed and the original cause to errors.Is.
func (e *HandlerError) Unwrap() []error {
	return []error{ErrHandlerFailed, e.Err}
}
