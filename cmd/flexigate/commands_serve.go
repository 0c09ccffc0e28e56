package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/flexigate/internal/gwconfig"
	"github.com/haasonsaas/flexigate/internal/observability"
)

func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load a configuration and keep its circuit breakers synchronized",
		Long: `serve wires up the registry, breakers, and (if enabled) the Redis
synchronizer described by the configuration file, then blocks until
SIGINT/SIGTERM. It does not expose an HTTP API of its own: FlexiGate is a
library meant to be embedded in a host process, and this command exists to
keep a standalone synchronizer worker alive for multi-process testing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "flexigate.yaml", "Path to YAML configuration file")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := gwconfig.Load(configPath)
	if err != nil {
		return err
	}

	logger := slog.Default()

	shutdownTracing := observability.Setup(observability.TraceConfig{
		ServiceName:    "flexigate",
		ServiceVersion: version,
	})
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", slog.String("error", err.Error()))
		}
	}()

	gw, err := buildGateway(cfg, logger)
	if err != nil {
		return err
	}
	defer gw.Close()

	logger.Info("flexigate started",
		slog.Int("providers", len(cfg.Providers)),
		slog.Bool("sync_enabled", cfg.Sync.Enabled),
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()

	logger.Info("shutdown signal received")
	return nil
}
