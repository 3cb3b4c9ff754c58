package main

import (
	"fmt"

	"github.com/aretw0/automata/internal/presentation/graph"
	"github.com/aretw0/automata/pkg/dsl"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [file]",
	Short: "Export the automata as Mermaid diagrams",
	Long:  `Reads the definition and outputs one Mermaid diagram (graph TD) per automaton.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		only, _ := cmd.Flags().GetString("automaton")

		def, err := dsl.LoadFile(definitionPath(cmd, args))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		found := false
		for _, a := range def.Automata {
			if only != "" && a.Name != only {
				continue
			}
			found = true
			fmt.Fprintf(out, "%%%% %s\n", a.Name)
			fmt.Fprint(out, graph.GenerateMermaid(a, nil))
		}
		if only != "" && !found {
			return fmt.Errorf("automaton '%s' is not defined", only)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("automaton", "a", "", "Only export this automaton")
}
