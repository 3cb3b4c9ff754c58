package main

import (
	"fmt"

	"github.com/aretw0/automata/internal/presentation/tui"
	"github.com/aretw0/automata/pkg/dsl"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check the definition for consistency",
	Long:  `Reports unknown view references, undefined action targets, duplicate names and missing initial states.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runValidate(definitionPath(cmd, args)); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tui.Highlight("Definition is valid! ✅"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(path string) error {
	def, err := dsl.LoadFile(path)
	if err != nil {
		return err
	}
	return dsl.Validate(def)
}
