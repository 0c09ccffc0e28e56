// Package retry implements the bounded exponential-backoff retry engine
// that guards a single provider adapter invocation.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/haasonsaas/flexigate/internal/provider"
)

// Config parameterizes the backoff schedule. The delay before retry
// attempt n (1-indexed) is
// min(MaxDelay, BaseDelay*2^(n-1)) * (1 + U(-Jitter, +Jitter)).
type Config struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	JitterFraction float64
}

// DefaultConfig matches the engine's documented defaults: 3 attempts,
// 500ms base delay, 30s cap, 10% jitter.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       30 * time.Second,
		JitterFraction: 0.1,
	}
}

func (c Config) normalized() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultConfig().BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultConfig().MaxDelay
	}
	if c.JitterFraction < 0 {
		c.JitterFraction = 0
	}
	return c
}

// Backoff computes the delay before retry attempt n (1-indexed: the delay
// before the 2nd try uses n=1) given a uniform random value in [0, 1).
func Backoff(cfg Config, n int, randomValue float64) time.Duration {
	cfg = cfg.normalized()
	base := float64(cfg.BaseDelay) * math.Pow(2, float64(n-1))
	if base > float64(cfg.MaxDelay) {
		base = float64(cfg.MaxDelay)
	}
	jitter := base * cfg.JitterFraction * (2*randomValue - 1)
	total := base + jitter
	if total < 0 {
		total = 0
	}
	if total > float64(cfg.MaxDelay) {
		total = float64(cfg.MaxDelay)
	}
	return time.Duration(total)
}

// Result reports the outcome of a Do call.
type Result[T any] struct {
	Value    T
	Attempts int
	LastErr  error
}

// Do executes attemptFn up to cfg.MaxAttempts times, retrying only when the
// returned error classifies as provider.KindTransient. Context cancellation
// stops retries immediately without sleeping further: if it interrupts a
// backoff sleep, LastErr is the context's error; if it is seen before an
// attempt, LastErr is the last attempt's error (or the context's error
// when no attempt was made). Attempts is always the number of calls actually made to
// attemptFn, whether or not the final one succeeded.
func Do[T any](ctx context.Context, cfg Config, attemptFn func(ctx context.Context, attempt int) (T, error)) Result[T] {
	cfg = cfg.normalized()
	var result Result[T]

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if result.LastErr == nil {
				result.LastErr = err
			}
			return result
		}

		value, err := attemptFn(ctx, attempt)
		result.Attempts = attempt
		if err == nil {
			result.Value = value
			result.LastErr = nil
			return result
		}
		result.LastErr = err

		if !provider.Classify(err).Retryable() {
			return result
		}
		if attempt >= cfg.MaxAttempts {
			return result
		}

		d := Backoff(cfg, attempt, rand.Float64()) // #nosec G404 -- jitter, not security sensitive
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			result.LastErr = ctx.Err()
			return result
		case <-timer.C:
		}
	}
	return result
}
