package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/flexigate/internal/gwconfig"
)

func buildTriggerFailureCmd() *cobra.Command {
	var configPath string
	var providerName string

	cmd := &cobra.Command{
		Use:   "trigger-failure",
		Short: "Force a provider's breaker to record a failure (requires debug: true)",
		Long: `trigger-failure injects a terminal failure into the named provider's
breaker without calling its adapter, for exercising cross-process
synchronization by hand. It requires debug: true in the loaded
configuration and refuses to run otherwise.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTriggerFailure(cmd, configPath, providerName)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "flexigate.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVar(&providerName, "provider", "", "Provider name to force a failure on")
	_ = cmd.MarkFlagRequired("provider")
	return cmd
}

func runTriggerFailure(cmd *cobra.Command, configPath, providerName string) error {
	cfg, err := gwconfig.Load(configPath)
	if err != nil {
		return err
	}
	if !cfg.Debug {
		return fmt.Errorf("trigger-failure requires debug: true in %s", configPath)
	}

	gw, err := buildGateway(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer gw.Close()

	if err := gw.client.DebugForceFailure(cmd.Context(), providerName); err != nil {
		return err
	}

	status, ok := gw.client.GetProviderStatus(providerName)
	if !ok {
		return fmt.Errorf("provider %s not registered", providerName)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s (failures=%d)\n", providerName, status.BreakerState, status.FailureCount)
	return nil
}
