package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/go-scene-voice/internal/config"
	"github.com/example/go-scene-voice/internal/server"
	"github.com/example/go-scene-voice/internal/telemetry"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scenevoice HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	return cmd
}

func runServe(ctx context.Context, cfg config.Config) error {
	log := slog.Default()

	metrics, err := telemetry.Setup("scenevoice", version, log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metrics.Shutdown(shutdownCtx)
	}()

	d, err := newDeps(ctx, cfg, metrics)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	orch, err := d.synthesizer(ctx)
	if err != nil {
		return err
	}

	opts := []server.Option{
		server.WithMaxTextBytes(cfg.Server.MaxTextBytes),
		server.WithWorkers(cfg.Server.Workers),
		server.WithRequestTimeout(cfg.Server.RequestTimeout),
		server.WithLogger(log),
		server.WithMetrics(metrics),
		server.WithFilePrefix(cfg.Output.Prefix),
	}
	if d.history != nil {
		opts = append(opts, server.WithHistory(d.history))
	}

	h := server.NewHandler(d.generator(), orch, d.catalog, opts...)
	srv := server.New(cfg.Server.ListenAddr, h).
		WithShutdownTimeout(cfg.Server.ShutdownTimeout)

	return srv.Start(ctx)
}
