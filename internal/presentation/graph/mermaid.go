package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/automata/pkg/domain"
	"github.com/aretw0/automata/pkg/dsl"
)

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	VisitedStates []string
	CurrentState  string
}

// GenerateMermaid produces a Mermaid flowchart syntax string from an automaton definition.
// It applies semantic styling:
// - Initial: ((Circle))
// - Failed: {{Hexagon}}
// - Default: [Rectangle]
// States with views list them under the name. Actions are labelled edges, declared
// failures are dotted edges into the failed state.
// It also applies overlay styles (Visited/Current) if provided.
func GenerateMermaid(a dsl.AutomatonDef, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, state := range a.States {
		safeID := sanitizeMermaidID(state.Name)

		opener, closer := "[", "]"
		if state.Name == a.Initial {
			opener, closer = "((", "))"
		}

		label := fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, state.Name, closer)
		if len(state.Views) > 0 {
			label = fmt.Sprintf("    %s%s\"%s <br/> %s\"%s\n", safeID, opener, state.Name, strings.Join(state.Views, ", "), closer)
		}
		sb.WriteString(label)

		actions := make([]string, 0, len(state.Actions))
		for name := range state.Actions {
			actions = append(actions, name)
		}
		sort.Strings(actions)

		for _, name := range actions {
			action := state.Actions[name]
			safeName := strings.ReplaceAll(name, "\"", "'")

			switch {
			case action.Fail != "":
				sb.WriteString(fmt.Sprintf("    %s -. \"%s\" .-> %s\n", safeID, safeName, domain.StateFailed))
			case action.Next == "":
				sb.WriteString(fmt.Sprintf("    %s -- \"%s\" --> %s\n", safeID, safeName, safeID))
			default:
				sb.WriteString(fmt.Sprintf("    %s -- \"%s\" --> %s\n", safeID, safeName, sanitizeMermaidID(action.Next)))
			}
		}
	}

	sb.WriteString(fmt.Sprintf("    %s{{\"%s\"}}\n", domain.StateFailed, domain.StateFailed))

	// Apply Overlay Styles
	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, name := range overlay.VisitedStates {
			safeID := sanitizeMermaidID(name)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
			}
		}

		if overlay.CurrentState != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentState)))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
