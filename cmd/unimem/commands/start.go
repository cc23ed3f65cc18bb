package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/GoSecreto/UniMem/internal/app"
	"github.com/GoSecreto/UniMem/internal/config"
	"github.com/GoSecreto/UniMem/internal/worker"
	"github.com/GoSecreto/UniMem/pkg/hooks"
)

func newStartCommand(opts *rootOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the worker in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWorker(ctx, opts, port)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (default from settings)")
	return cmd
}

// runWorker serves until ctx ends. A restart request reloads settings and
// serves again in the same process.
func runWorker(ctx context.Context, opts *rootOptions, port int) error {
	for {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if port > 0 {
			cfg.WorkerPort = port
		}
		closer := app.SetupLogging(cfg.LogLevel, opts.debug, config.LogPath())

		if hooks.IsWorkerRunning(cfg.WorkerPort) {
			_ = closer.Close()
			return fmt.Errorf("a worker is already running on port %d", cfg.WorkerPort)
		}

		err = serveOnce(ctx, cfg, opts.version)
		_ = closer.Close()
		if errors.Is(err, worker.ErrRestartRequested) && ctx.Err() == nil {
			log.Info().Msg("Reloading configuration")
			continue
		}
		return err
	}
}

func serveOnce(ctx context.Context, cfg *config.Config, version string) error {
	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close store")
		}
	}()
	return worker.NewService(a, version).Run(ctx)
}
