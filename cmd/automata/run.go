package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/automata"
	"github.com/aretw0/automata/internal/presentation/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Run the automata interactively",
	Long: `Loads the definition and reads actions from standard input.

Each line is "action [input]" or "automaton/action [input]"; input is parsed as JSON
when possible. Every transition is rendered with the views of the new state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		headless, _ := cmd.Flags().GetBool("headless")

		logger, closeLog, err := createLogger(cmd)
		if err != nil {
			return err
		}
		defer closeLog()

		eng, err := loadEngine(cmd, definitionPath(cmd, args), logger)
		if err != nil {
			return err
		}
		defer eng.Close()

		interactive := !headless && term.IsTerminal(int(os.Stdout.Fd()))
		if interactive {
			tui.PrintBanner(os.Stdout)
		}

		r := automata.NewRunner()
		r.Input = os.Stdin
		r.Output = os.Stdout
		r.Headless = headless
		if interactive {
			r.Renderer = automata.ContentRenderer(tui.NewRenderer())
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := r.Run(ctx, eng); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("run failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("headless", false, "Run in headless mode (no prompts, plain output)")
	addEngineFlags(runCmd)
}
