package runtime

import "github.com/aretw0/automata/pkg/domain"

// Delta is a requested transition.
//
// From is filled in by the automaton with the active state name before dispatch.
// Context and Buffer are references to the automaton's shared records; handlers may
// mutate them during the call but must not retain them afterwards.
type Delta struct {
	Action  string          `json:"action"`
	Input   any             `json:"input,omitempty"`
	From    string          `json:"from,omitempty"`
	Context *domain.Context `json:"-"`
	Buffer  *domain.Buffer  `json:"-"`
}

// NewDelta creates a transition request.
func NewDelta(action string, input any, from string) *Delta {
	return &Delta{
		Action: action,
		Input:  input,
		From:   from,
	}
}

// DecodeInput decodes the delta input into out (see domain.Decode).
func (d *Delta) DecodeInput(out any) error {
	return domain.Decode(d.Input, out)
}
