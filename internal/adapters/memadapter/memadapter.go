// Package memadapter provides a scriptable, in-memory provider.Adapter
// used to exercise the router and breaker without a live vendor API.
package memadapter

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/haasonsaas/flexigate/internal/unified"
)

// Script is called once per Invoke to produce the response/error for that
// call. attempt is 1-indexed and counts calls across the adapter's entire
// lifetime, not per-request.
type Script func(attempt int, req unified.Request) (unified.Response, error)

// Adapter is a scriptable, in-memory implementation of provider.Adapter.
type Adapter struct {
	name  string
	model string

	mu        sync.Mutex
	script    Script
	healthy   bool
	callCount int64
}

// New builds an Adapter named name/model that always runs script.
func New(name, model string, script Script) *Adapter {
	return &Adapter{name: name, model: model, script: script, healthy: true}
}

// Invoke implements provider.Adapter.
func (a *Adapter) Invoke(ctx context.Context, req unified.Request) (unified.Response, error) {
	attempt := int(atomic.AddInt64(&a.callCount, 1))

	a.mu.Lock()
	script := a.script
	a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return unified.Response{}, err
	}
	resp, err := script(attempt, req)
	if err == nil && resp.Provider == "" {
		resp.Provider = a.name
	}
	return resp, err
}

// HealthCheck implements provider.Adapter.
func (a *Adapter) HealthCheck(context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.healthy
}

// Name implements provider.Adapter.
func (a *Adapter) Name() string { return a.name }

// Model implements provider.Adapter.
func (a *Adapter) Model() string { return a.model }

// SetHealthy overrides the HealthCheck result, for tests that exercise
// degraded-status reporting.
func (a *Adapter) SetHealthy(healthy bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.healthy = healthy
}

// SetScript swaps the script mid-test, e.g. to flip a failing adapter to
// succeed once a breaker recovery probe is expected.
func (a *Adapter) SetScript(script Script) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.script = script
}

// CallCount returns the number of times Invoke has been called.
func (a *Adapter) CallCount() int {
	return int(atomic.LoadInt64(&a.callCount))
}

// AlwaysSucceed returns a Script that always returns a canned response.
func AlwaysSucceed(content string) Script {
	return func(int, unified.Request) (unified.Response, error) {
		return unified.Response{Content: content, FinishReason: unified.FinishStop}, nil
	}
}

// AlwaysFail returns a Script that always returns err.
func AlwaysFail(err error) Script {
	return func(int, unified.Request) (unified.Response, error) {
		return unified.Response{}, err
	}
}

// FailNTimesThenSucceed returns a Script that fails with err for the
// first n calls, then succeeds with a canned response.
func FailNTimesThenSucceed(n int, err error, content string) Script {
	return func(attempt int, _ unified.Request) (unified.Response, error) {
		if attempt <= n {
			return unified.Response{}, err
		}
		return unified.Response{Content: content, FinishReason: unified.FinishStop}, nil
	}
}
