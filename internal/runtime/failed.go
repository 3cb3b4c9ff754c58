package runtime

import (
	"context"

	"github.com/aretw0/automata/pkg/domain"
)

// newFailedState builds the reserved failure-recovery state.
//
//   - "failed" stores {message, from} in the buffer and stays in "failed".
//   - "back" returns to the recorded origin, or to the initial state without one.
func newFailedState() *State {
	s, _ := newState(StateConfig{
		Name: domain.StateFailed,
		Actions: map[string]Handler{
			domain.ActionFailed: captureFailure,
			domain.ActionBack:   recoverFailure,
		},
	})
	return s
}

func captureFailure(ctx context.Context, s *State, d *Delta) (*Omega, error) {
	var fo domain.FailedOutput
	switch in := d.Input.(type) {
	case domain.FailedOutput:
		fo = in
	case *domain.FailedOutput:
		fo = *in
	default:
		if err := d.DecodeInput(&fo); err != nil {
			fo.Message = err.Error()
		}
	}
	if fo.From == "" {
		fo.From = d.From
	}

	// A failure raised while already failed keeps the original origin.
	if fo.From == domain.StateFailed {
		if prev, ok := d.Buffer.FailedOutput(); ok {
			fo.From = prev.From
		}
	}

	d.Buffer.SetFailedOutput(fo)
	return NewOmega(domain.StateFailed, Output{domain.OutputError: fo.Message}, nil, nil), nil
}

func recoverFailure(ctx context.Context, s *State, d *Delta) (*Omega, error) {
	next := ""
	if fo, ok := d.Buffer.FailedOutput(); ok {
		next = fo.From
	}
	if next == "" || next == domain.StateFailed {
		next = s.Automaton().Initial()
	}

	d.Buffer.Delete(domain.KeyFailedOutput)
	return NewOmega(next, nil, nil, nil), nil
}
