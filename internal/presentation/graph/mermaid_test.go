package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/automata/internal/presentation/graph"
	"github.com/aretw0/automata/pkg/dsl"
	"github.com/sebdah/goldie/v2"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name      string
		automaton dsl.AutomatonDef
		contains  []string
	}{
		{
			name: "Initial State Shape",
			automaton: dsl.AutomatonDef{
				Initial: "start",
				States:  []dsl.StateDef{{Name: "start"}, {Name: "other"}},
			},
			contains: []string{
				"start((\"start\"))",
				"other[\"other\"]",
				"failed{{\"failed\"}}",
			},
		},
		{
			name: "ID Sanitization",
			automaton: dsl.AutomatonDef{
				States: []dsl.StateDef{{Name: "step.one"}, {Name: "hyphen-ated"}},
			},
			contains: []string{
				"step_one[\"step.one\"]",
				"hyphen_ated[\"hyphen-ated\"]",
			},
		},
		{
			name: "Action Edges",
			automaton: dsl.AutomatonDef{
				States: []dsl.StateDef{{
					Name: "A",
					Actions: map[string]dsl.ActionDef{
						"go":       {Next: "B"},
						"stay":     {},
						"explode":  {Fail: "boom"},
						`say "hi"`: {Next: "B"},
					},
				}},
			},
			contains: []string{
				`A -- "go" --> B`,
				`A -- "stay" --> A`,
				`A -. "explode" .-> failed`,
				`A -- "say 'hi'" --> B`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.automaton, nil)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() = \n%v\nWant substring: %v", got, want)
				}
			}
		})
	}
}

func TestGenerateMermaid_Golden(t *testing.T) {
	def, err := dsl.LoadFile("../../../pkg/dsl/testdata/login.yaml")
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	login, _ := def.Automaton("login")

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	g.Assert(t, "login", []byte(graph.GenerateMermaid(*login, nil)))
	g.Assert(t, "login_overlay", []byte(graph.GenerateMermaid(*login, &graph.GraphOverlay{
		VisitedStates: []string{"idle", "authenticating", "idle"},
		CurrentState:  "authenticated",
	})))
}
