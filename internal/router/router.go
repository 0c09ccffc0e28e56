// Package router implements the gateway's client core: the public
// ChatCompletion entry point that ties the registry, retry engine,
// circuit breakers, and stats aggregator together.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/haasonsaas/flexigate/internal/breaker"
	"github.com/haasonsaas/flexigate/internal/provider"
	"github.com/haasonsaas/flexigate/internal/registry"
	"github.com/haasonsaas/flexigate/internal/retry"
	"github.com/haasonsaas/flexigate/internal/stats"
	"github.com/haasonsaas/flexigate/internal/unified"
)

var tracer = otel.Tracer("github.com/haasonsaas/flexigate/internal/router")

// AllProvidersFailed is returned when every candidate provider was tried
// (or skipped while Open) and none produced a response.
type AllProvidersFailed struct {
	ByProvider map[string]provider.Kind
}

func (e *AllProvidersFailed) Error() string {
	return fmt.Sprintf("flexigate: all providers failed: %v", e.ByProvider)
}

// Client is the router's public handle — a host constructs one around a
// populated Registry and calls ChatCompletion per request.
type Client struct {
	registry *registry.Registry
	stats    *stats.Aggregator
	retryCfg retry.Config
	debug    bool
	logger   *slog.Logger
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithRetryConfig overrides the default retry.DefaultConfig().
func WithRetryConfig(cfg retry.Config) Option {
	return func(c *Client) { c.retryCfg = cfg }
}

// WithLogger overrides the default slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithDebug enables DebugForceFailure.
func WithDebug(debug bool) Option {
	return func(c *Client) { c.debug = debug }
}

// New builds a Client around reg and agg.
func New(reg *registry.Registry, agg *stats.Aggregator, opts ...Option) *Client {
	c := &Client{
		registry: reg,
		stats:    agg,
		retryCfg: retry.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChatCompletion validates req, builds the
// candidate list (the single named provider if req.Provider is set,
// otherwise every registered provider by priority), and tries each
// candidate in turn: skipping ones whose breaker is Open, retrying
// transient failures within one provider, and failing over to the next
// candidate on transient or auth errors. Permanent errors (validation,
// policy, configuration) short-circuit immediately.
func (c *Client) ChatCompletion(ctx context.Context, req unified.Request) (unified.Response, error) {
	correlationID := uuid.NewString()
	logger := c.logger.With(slog.String("correlation_id", correlationID))

	if err := req.Validate(); err != nil {
		return unified.Response{}, err
	}

	candidates, err := c.buildCandidates(req)
	if err != nil {
		return unified.Response{}, err
	}

	byProvider := make(map[string]provider.Kind)

	for _, entry := range candidates {
		if ctx.Err() != nil {
			return unified.Response{}, ctx.Err()
		}

		resp, attemptErr := c.attempt(ctx, entry, req, logger)
		if attemptErr == nil {
			return resp, nil
		}

		if ctx.Err() != nil {
			return unified.Response{}, ctx.Err()
		}

		var openErr *breaker.OpenError
		if errors.As(attemptErr, &openErr) {
			c.stats.RecordSkippedOpen(entry.Config.Name)
			byProvider[entry.Config.Name] = provider.KindTransient
			continue
		}

		kind := provider.Classify(attemptErr)
		byProvider[entry.Config.Name] = kind
		c.stats.RecordFailure(entry.Config.Name)

		if !kind.Failover() {
			logger.Warn("chat completion short-circuited on permanent error",
				slog.String("provider", entry.Config.Name), slog.String("kind", string(kind)))
			c.stats.RecordRequestFailed()
			return unified.Response{}, attemptErr
		}

		logger.Info("failing over to next candidate",
			slog.String("provider", entry.Config.Name), slog.String("kind", string(kind)))
	}

	c.stats.RecordRequestFailed()
	return unified.Response{}, &AllProvidersFailed{ByProvider: byProvider}
}

func (c *Client) buildCandidates(req unified.Request) ([]*registry.Entry, error) {
	if req.Provider != "" {
		entry, ok := c.registry.Get(req.Provider)
		if !ok {
			return nil, &provider.Error{Kind: provider.KindConfiguration, Provider: req.Provider, Message: "provider not registered"}
		}
		return []*registry.Entry{entry}, nil
	}
	return c.registry.List(), nil
}

// attempt runs one candidate to completion: admission through its
// breaker, the retry engine, and the breaker's terminal outcome.
func (c *Client) attempt(ctx context.Context, entry *registry.Entry, req unified.Request, logger *slog.Logger) (unified.Response, error) {
	name := entry.Config.Name

	probe, admitErr := entry.Breaker.Allow()
	if admitErr != nil {
		return unified.Response{}, admitErr
	}

	ctx, span := tracer.Start(ctx, "flexigate.chat_completion.attempt", trace.WithAttributes(
		attribute.String("provider", name),
		attribute.String("model", entry.Config.Model),
	))
	defer span.End()

	result := retry.Do(ctx, c.retryCfg, func(ctx context.Context, attempt int) (unified.Response, error) {
		c.stats.RecordAttempt(name)
		return entry.Adapter.Invoke(ctx, req)
	})

	if result.LastErr == nil {
		entry.Breaker.Complete(probe, ctx, true)
		c.stats.RecordSuccess(name)
		return result.Value, nil
	}

	span.RecordError(result.LastErr)
	span.SetStatus(codes.Error, result.LastErr.Error())

	if ctx.Err() != nil {
		entry.Breaker.Complete(probe, ctx, false)
		return unified.Response{}, ctx.Err()
	}

	kind := provider.Classify(result.LastErr)
	if kind.OpensBreaker() {
		entry.Breaker.Complete(probe, ctx, false)
	} else {
		entry.Breaker.ReleaseProbe(probe)
	}

	logger.Debug("provider attempt failed", slog.String("provider", name), slog.Int("attempts", result.Attempts), slog.String("error", result.LastErr.Error()))
	return unified.Response{}, result.LastErr
}

// GetLastUsedProvider delegates to the stats aggregator.
func (c *Client) GetLastUsedProvider() (string, bool) {
	return c.stats.GetLastUsedProvider()
}

// GetRequestStats delegates to the stats aggregator.
func (c *Client) GetRequestStats() stats.RequestStats {
	return c.stats.GetRequestStats()
}

// ProviderStatus is the composed view returned by GetProviderStatus,
// combining registry, breaker, and stats state.
type ProviderStatus struct {
	Name             string
	Model            string
	Priority         int
	Status           string // available | degraded | unavailable
	BreakerState     breaker.State
	FailureCount     int
	SuccessCount     int
	ProviderCounters stats.ProviderCounters
}

// GetProviderStatus composes a ProviderStatus for name, or false if it is
// not registered.
func (c *Client) GetProviderStatus(name string) (ProviderStatus, bool) {
	entry, ok := c.registry.Get(name)
	if !ok {
		return ProviderStatus{}, false
	}
	snap := entry.Breaker.Snapshot()
	counters, _ := c.stats.GetProviderCounters(name)

	return ProviderStatus{
		Name:             name,
		Model:            entry.Config.Model,
		Priority:         entry.Config.Priority,
		Status:           statusFor(snap.State),
		BreakerState:     snap.State,
		FailureCount:     snap.FailureCount,
		SuccessCount:     snap.SuccessCount,
		ProviderCounters: counters,
	}, true
}

func statusFor(state breaker.State) string {
	switch state {
	case breaker.Closed:
		return "available"
	case breaker.HalfOpen:
		return "degraded"
	case breaker.Open:
		return "unavailable"
	default:
		return "unavailable"
	}
}

// DebugForceFailure injects an immediate terminal failure into
// providerName's breaker, bypassing the adapter entirely. Gated by
// WithDebug; intended for the trigger-failure CLI subcommand and
// chaos-testing cross-process convergence.
func (c *Client) DebugForceFailure(ctx context.Context, providerName string) error {
	if !c.debug {
		return fmt.Errorf("flexigate: debug surfaces are disabled")
	}
	entry, ok := c.registry.Get(providerName)
	if !ok {
		return fmt.Errorf("flexigate: provider %s not registered", providerName)
	}
	probe, err := entry.Breaker.Allow()
	if err != nil {
		return nil // already open/rejecting; nothing further to force
	}
	entry.Breaker.Complete(probe, ctx, false)
	return nil
}
