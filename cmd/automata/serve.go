package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/automata"
	httpAdapter "github.com/aretw0/automata/pkg/adapters/http"
	redisAdapter "github.com/aretw0/automata/pkg/adapters/redis"
	"github.com/aretw0/automata/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve [file]",
	Short: "Start the HTTP server",
	Long: `Starts the automata behind a JSON API over HTTP, with a server-sent event stream
per automaton and Prometheus metrics on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")
		redisAddr, _ := cmd.Flags().GetString("redis")
		redisPrefix, _ := cmd.Flags().GetString("redis-prefix")

		logger, closeLog, err := createLogger(cmd)
		if err != nil {
			return err
		}
		defer closeLog()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := observability.NewMetrics(reg)

		opts := []automata.Option{automata.WithLifecycleHooks(metrics.Hooks())}
		if redisAddr != "" {
			bus := redisAdapter.New(redisAddr, os.Getenv("REDIS_PASSWORD"), 0, redisAdapter.WithPrefix(redisPrefix))
			defer bus.Close()
			opts = append(opts, automata.WithEventBus(bus))
			logger.Info("Publishing events to redis", "address", redisAddr, "prefix", redisPrefix)
		}

		path := definitionPath(cmd, args)
		eng, err := loadEngine(cmd, path, logger, opts...)
		if err != nil {
			return err
		}
		defer eng.Close()

		handler, err := httpAdapter.NewHandler(eng.Factory(),
			httpAdapter.WithLogger(logger),
			httpAdapter.WithGatherer(reg),
		)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting automata server", "address", srv.Addr, "definition", path)
			fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on %s\n", path, srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case <-ctx.Done():
			logger.Info("Shutdown signal received")

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			// SSE streams never finish on their own.
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "automata server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().String("redis", "", "Redis address for publishing lifecycle events (disabled when empty)")
	serveCmd.Flags().String("redis-prefix", "automata:", "Channel prefix for published events")
	addEngineFlags(serveCmd)
}
