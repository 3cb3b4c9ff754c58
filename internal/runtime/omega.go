package runtime

// Output is the caller-visible payload of a transition result.
// After a transition it also holds the "context" snapshot and the live "buffer".
type Output map[string]any

// Omega is a transition result.
type Omega struct {
	// Next names the state to enter. Empty means stay in the current state.
	Next string `json:"next"`

	Output Output `json:"output,omitempty"`

	// Views is populated by the automaton with the views of the new active state.
	Views []*View `json:"views,omitempty"`

	Context any `json:"context,omitempty"`
}

// NewOmega creates a transition result.
func NewOmega(next string, output Output, views []*View, context any) *Omega {
	if output == nil {
		output = Output{}
	}
	return &Omega{
		Next:    next,
		Output:  output,
		Views:   views,
		Context: context,
	}
}

// ViewNames returns the names of the attached views in order.
func (o *Omega) ViewNames() []string {
	names := make([]string, 0, len(o.Views))
	for _, v := range o.Views {
		names = append(names, v.Name())
	}
	return names
}
