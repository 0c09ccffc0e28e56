package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/flexigate/internal/gwconfig"
)

func buildStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print each configured provider's breaker state and counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "flexigate.yaml", "Path to YAML configuration file")
	return cmd
}

func runStatus(cmd *cobra.Command, configPath string) error {
	cfg, err := gwconfig.Load(configPath)
	if err != nil {
		return err
	}

	gw, err := buildGateway(cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		return err
	}
	defer gw.Close()

	out := cmd.OutOrStdout()
	for _, entry := range gw.registry.List() {
		status, ok := gw.client.GetProviderStatus(entry.Config.Name)
		if !ok {
			continue
		}
		fmt.Fprintf(out, "%-12s priority=%-3d state=%-10s status=%-12s failures=%-3d successes=%d\n",
			status.Name, status.Priority, status.BreakerState, status.Status, status.FailureCount, status.SuccessCount)
	}

	rs := gw.client.GetRequestStats()
	fmt.Fprintf(out, "\ntotal=%d successful=%d failed=%d\n", rs.TotalRequests, rs.SuccessfulRequests, rs.FailedRequests)
	return nil
}
