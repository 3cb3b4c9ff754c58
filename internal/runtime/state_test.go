package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/automata/internal/runtime"
	"github.com/aretw0/automata/pkg/domain"
)

func TestState_DefineAction(t *testing.T) {
	f := runtime.NewFactory()
	s, err := f.CreateState(runtime.StateConfig{Name: "idle"})
	if err != nil {
		t.Fatalf("CreateState failed: %v", err)
	}

	if err := s.DefineAction("", goTo("x")); !errors.Is(err, domain.ErrInvalidName) {
		t.Errorf("expected ErrInvalidName for empty action, got %v", err)
	}
	if err := s.DefineAction("go", nil); !errors.Is(err, domain.ErrInvalidName) {
		t.Errorf("expected ErrInvalidName for nil handler, got %v", err)
	}
	if err := s.DefineAction("go", goTo("x")); err != nil {
		t.Fatalf("DefineAction failed: %v", err)
	}
	if !s.Has("go") {
		t.Error("expected state to define 'go'")
	}
	if s.Automaton() != nil {
		t.Error("an unregistered state has no automaton")
	}

	if _, err := f.CreateState(runtime.StateConfig{}); !errors.Is(err, domain.ErrInvalidName) {
		t.Errorf("expected ErrInvalidName for unnamed state, got %v", err)
	}
}

func TestState_TransitDirectly(t *testing.T) {
	f := runtime.NewFactory()
	s, _ := f.CreateState(runtime.StateConfig{
		Name:  "idle",
		Local: map[string]any{"hits": 0},
		Actions: map[string]runtime.Handler{
			"hit": func(ctx context.Context, s *runtime.State, d *runtime.Delta) (*runtime.Omega, error) {
				s.Local()["hits"] = s.Local()["hits"].(int) + 1
				return runtime.NewOmega("", runtime.Output{"hits": s.Local()["hits"]}, nil, nil), nil
			},
			"fail": func(ctx context.Context, s *runtime.State, d *runtime.Delta) (*runtime.Omega, error) {
				return nil, errors.New("nope")
			},
		},
	})
	ctx := context.Background()

	omega, err := s.Transit(ctx, runtime.NewDelta("hit", nil, "idle"))
	if err != nil {
		t.Fatalf("Transit failed: %v", err)
	}
	if omega.Output["hits"] != 1 {
		t.Errorf("expected hits=1, got %v", omega.Output["hits"])
	}

	_, err = s.Transit(ctx, runtime.NewDelta("fail", nil, "idle"))
	var he *domain.HandlerError
	if !errors.As(err, &he) {
		t.Fatalf("expected HandlerError, got %v", err)
	}
	if he.State != "idle" || he.Action != "fail" {
		t.Errorf("unexpected handler error: %+v", he)
	}
	if !errors.Is(err, domain.ErrHandlerFailed) {
		t.Error("expected error to match ErrHandlerFailed")
	}

	omega, err = s.Transit(ctx, runtime.NewDelta("missing", nil, "idle"))
	if err != nil {
		t.Fatalf("unmatched actions are not errors, got %v", err)
	}
	if omega.Next != domain.StateFailed {
		t.Errorf("expected fallback to failed, got %q", omega.Next)
	}
}
