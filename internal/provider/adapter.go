// Package provider defines the Provider Adapter contract, the
// per-provider configuration record, and the error taxonomy used by the
// retry engine, circuit breaker, and router to decide whether an error is
// retryable, opens the breaker, or warrants failover.
package provider

import (
	"context"
	"time"

	"github.com/haasonsaas/flexigate/internal/unified"
)

// Adapter is a single-attempt RPC to one vendor. Concrete adapters
// (internal/adapters/openaiadapter, anthropicadapter, memadapter) implement
// this; the core only ever depends on the interface.
type Adapter interface {
	// Invoke performs one synchronous completion attempt. It must honor
	// ctx's deadline and return before it elapses whenever possible.
	Invoke(ctx context.Context, req unified.Request) (unified.Response, error)

	// HealthCheck is a cheap, idempotent probe (e.g. list-models).
	HealthCheck(ctx context.Context) bool

	// Name returns the adapter's provider name.
	Name() string

	// Model returns the adapter's configured default model.
	Model() string
}

// Config is one provider's entry in the registry.
type Config struct {
	Name        string
	Priority    int
	APIKey      string
	Model       string
	Timeout     time.Duration
	ExtraConfig map[string]any
}
