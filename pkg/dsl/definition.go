package dsl

import (
	"fmt"
	"os"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Definition is a declarative set of views and automata.
type Definition struct {
	Views    []ViewDef      `yaml:"views,omitempty" json:"views,omitempty" mapstructure:"views"`
	Automata []AutomatonDef `yaml:"automata" json:"automata" mapstructure:"automata"`
}

// ViewDef declares a template view.
type ViewDef struct {
	Name      string `yaml:"name" json:"name" mapstructure:"name"`
	Template  string `yaml:"template" json:"template" mapstructure:"template"`
	Automaton string `yaml:"automaton,omitempty" json:"automaton,omitempty" mapstructure:"automaton"`
}

// AutomatonDef declares an automaton and its states.
type AutomatonDef struct {
	Name    string         `yaml:"name" json:"name" mapstructure:"name"`
	Initial string         `yaml:"initial" json:"initial" mapstructure:"initial"`
	Context map[string]any `yaml:"context,omitempty" json:"context,omitempty" mapstructure:"context"`
	Buffer  map[string]any `yaml:"buffer,omitempty" json:"buffer,omitempty" mapstructure:"buffer"`
	States  []StateDef     `yaml:"states" json:"states" mapstructure:"states"`
}

// StateDef declares a state.
type StateDef struct {
	Name    string               `yaml:"name" json:"name" mapstructure:"name"`
	Views   []string             `yaml:"views,omitempty" json:"views,omitempty" mapstructure:"views"`
	Local   map[string]any       `yaml:"local,omitempty" json:"local,omitempty" mapstructure:"local"`
	Actions map[string]ActionDef `yaml:"actions,omitempty" json:"actions,omitempty" mapstructure:"actions"`
}

// ActionDef declares what an action does.
// In YAML an action may also be written as a bare string naming Next.
type ActionDef struct {
	Next   string         `yaml:"next,omitempty" json:"next,omitempty" mapstructure:"next"`
	Assign map[string]any `yaml:"assign,omitempty" json:"assign,omitempty" mapstructure:"assign"`
	Unset  []string       `yaml:"unset,omitempty" json:"unset,omitempty" mapstructure:"unset"`
	Output map[string]any `yaml:"output,omitempty" json:"output,omitempty" mapstructure:"output"`

	// Fail routes the automaton to the failed state with this message.
	Fail string `yaml:"fail,omitempty" json:"fail,omitempty" mapstructure:"fail"`
}

// Automaton returns the named automaton definition.
func (d *Definition) Automaton(name string) (*AutomatonDef, bool) {
	for i := range d.Automata {
		if d.Automata[i].Name == name {
			return &d.Automata[i], true
		}
	}
	return nil, false
}

// State returns the named state definition.
func (a *AutomatonDef) State(name string) (*StateDef, bool) {
	for i := range a.States {
		if a.States[i].Name == name {
			return &a.States[i], true
		}
	}
	return nil, false
}

// Parse decodes a YAML definition. Unknown keys are rejected.
func Parse(data []byte) (*Definition, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse definition: %w", err)
	}

	var def Definition
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &def,
		ErrorUnused: true,
		DecodeHook:  actionShorthandHook,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode definition: %w", err)
	}
	return &def, nil
}

// LoadFile reads and parses a YAML definition file.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition '%s': %w", path, err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Marshal encodes a definition as YAML.
func Marshal(def *Definition) ([]byte, error) {
	return yaml.Marshal(def)
}

var actionDefType = reflect.TypeOf(ActionDef{})

// actionShorthandHook turns `submit: next_state` into ActionDef{Next: "next_state"}.
func actionShorthandHook(from, to reflect.Type, data any) (any, error) {
	if to != actionDefType || from.Kind() != reflect.String {
		return data, nil
	}
	return ActionDef{Next: data.(string)}, nil
}
