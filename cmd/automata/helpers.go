package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/automata"
	"github.com/aretw0/automata/internal/logging"
	"github.com/aretw0/automata/pkg/observability"
	"github.com/spf13/cobra"
)

// definitionPath resolves the definition file from --file or the first argument.
func definitionPath(cmd *cobra.Command, args []string) string {
	path, _ := cmd.Flags().GetString("file")
	if !cmd.Flags().Changed("file") && len(args) > 0 {
		path = args[0]
	}
	return path
}

// createLogger builds the command logger. The returned func closes the log file.
func createLogger(cmd *cobra.Command) (*slog.Logger, func() error, error) {
	levelName, _ := cmd.Flags().GetString("log-level")
	logFile, _ := cmd.Flags().GetString("log-file")
	level := logging.ParseLevel(levelName)

	if logFile == "" {
		return logging.New(level), func() error { return nil }, nil
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return logging.New(level, logging.JSONHandler(file, level)), file.Close, nil
}

// loadEngine loads the definition with logging hooks and the engine flags.
func loadEngine(cmd *cobra.Command, path string, logger *slog.Logger, opts ...automata.Option) (*automata.Engine, error) {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	reject, _ := cmd.Flags().GetBool("reject")

	engineOpts := []automata.Option{
		automata.WithLogger(logger),
		automata.WithLifecycleHooks(observability.LogHooks(logger)),
	}
	if timeout > 0 {
		engineOpts = append(engineOpts, automata.WithTransitionTimeout(timeout))
	}
	if reject {
		engineOpts = append(engineOpts, automata.WithRejectConcurrent())
	}
	engineOpts = append(engineOpts, opts...)

	eng, err := automata.Load(path, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing automata: %w", err)
	}
	return eng, nil
}

// addEngineFlags registers the flags read by loadEngine.
func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("timeout", 0, "Per-transition deadline (0 disables)")
	cmd.Flags().Bool("reject", false, "Reject concurrent transits instead of queueing them")
}
