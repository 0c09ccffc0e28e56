// Package main is the CLI entry point for FlexiGate, a provider-agnostic
// LLM gateway with circuit-breaker failover and cross-process state sync.
//
// # Basic usage
//
//	flexigate serve --config flexigate.yaml
//	flexigate status --config flexigate.yaml
//	flexigate trigger-failure --config flexigate.yaml --provider openai
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "flexigate",
		Short:   "FlexiGate - provider-agnostic LLM gateway with circuit-breaker failover",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Long: `FlexiGate routes chat completions across a priority-ordered list of
LLM providers, tripping a per-provider circuit breaker on repeated
transient failures and failing over to the next candidate. State can be
synchronized across processes over Redis pub/sub.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildStatusCmd(),
		buildTriggerFailureCmd(),
	)
	return rootCmd
}
