// Package watch implements the long-running watch command.
package watch

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	cmdcommon "github.com/Speed-Jobs/jobwatch/cmd/common"
	"github.com/Speed-Jobs/jobwatch/internal/api"
	"github.com/Speed-Jobs/jobwatch/internal/diff"
	"github.com/Speed-Jobs/jobwatch/internal/metrics"
	"github.com/Speed-Jobs/jobwatch/internal/watcher"
)

const shutdownTimeout = 10 * time.Second

// Command returns the watch command for use in the root command.
func Command() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the posting source and announce new postings",
		Long: `Periodically fetches the configured posting source, diffs it against
the snapshot store and announces postings seen for the first time. The
first cycle on a fresh store only seeds the baseline; nothing is
announced for it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := cmdcommon.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}
			defer deps.Close()

			if interval > 0 {
				deps.Config.Watch.Interval = interval
			}
			return run(cmd.Context(), deps)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "override the check interval")
	return cmd
}

func run(ctx context.Context, deps *cmdcommon.CommandDeps) error {
	cfg := deps.Config
	log := deps.Logger

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	source, err := deps.NewSource()
	if err != nil {
		return err
	}

	dispatcher := deps.NewDispatcher(m)
	defer dispatcher.Close()

	opts := []watcher.Option{
		watcher.WithInterval(cfg.Watch.Interval),
		watcher.WithInitialDelay(cfg.Watch.InitialDelay),
		watcher.WithMetrics(m),
	}
	if cfg.Watch.Cron != "" {
		opts = append(opts, watcher.WithCronSchedule(cfg.Watch.Cron))
	}
	w := watcher.New(log, source, diff.NewEngine(deps.Store, log), dispatcher, deps.Store, opts...)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	var server *api.Server
	serverErr := make(chan error, 1)
	if cfg.Server.Enabled {
		server = api.New(log, cfg.Server.Address, w, deps.Store, registry, cfg.App.Version)
		go func() { serverErr <- server.Start() }()
	}

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-serverErr:
		w.Stop()
		return err
	}

	w.Stop()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("API server shutdown failed", "error", err)
		}
	}
	return nil
}
