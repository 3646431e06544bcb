package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/uccc/cloud-cost-ledger/internal/server"
	"github.com/uccc/cloud-cost-ledger/internal/worker"
)

// DefaultShutdownTimeout is the maximum time to wait for graceful shutdown
const DefaultShutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	var noScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background collection cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			a.logger.Info("Cost ledger starting",
				"http_port", a.cfg.HTTPPort,
				"base_currency", a.cfg.BaseCurrency,
				"providers", a.cfg.EnabledProviders(),
				"collect_interval_seconds", a.cfg.CollectInterval)

			if !noScheduler {
				sched := worker.NewScheduler(a.cfg, a.orch, a.ecb, a.store, a.agg, a.notifier, a.logger)
				sched.Start(ctx)
			}

			srv := server.NewServer(a.cfg, a.agg, a.orch, a.logger)

			serverErrors := make(chan error, 1)
			go func() {
				serverErrors <- srv.Start()
			}()

			shutdown := make(chan os.Signal, 1)
			signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

			select {
			case err := <-serverErrors:
				a.logger.Error("Server error", "error", err)
				return err

			case sig := <-shutdown:
				a.logger.Info("Received shutdown signal, starting graceful shutdown", "signal", sig.String())
				cancel()

				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
				defer shutdownCancel()

				if err := srv.Shutdown(shutdownCtx); err != nil {
					a.logger.Error("Error during server shutdown", "error", err)
					return err
				}
				a.logger.Info("Server stopped gracefully")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "Serve the API without the background collection cycle")
	return cmd
}
