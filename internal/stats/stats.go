// Package stats implements the gateway's request-stats aggregator:
// process-wide, monotonic counters plus Prometheus mirrors for hosts that
// scrape metrics.
package stats

import (
	"sync"
	"sync/atomic"
)

// RequestStats is the read-only view returned by GetRequestStats.
type RequestStats struct {
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	ProvidersUsed      []string
}

// ProviderCounters is the read-only per-provider view returned by
// GetProviderCounters.
type ProviderCounters struct {
	Attempts    int64
	Successes   int64
	Failures    int64
	SkippedOpen int64
}

type providerCounters struct {
	attempts    int64
	successes   int64
	failures    int64
	skippedOpen int64
}

// Aggregator tracks the gateway's request counters. All mutation methods
// are safe for concurrent use; counters are non-decreasing monotonic
// except via an explicit ResetStats call.
type Aggregator struct {
	totalRequests      int64
	successfulRequests int64
	failedRequests     int64

	mu       sync.RWMutex
	provider map[string]*providerCounters

	lastUsed atomic.Pointer[string]

	metrics *Metrics
}

// New builds an empty Aggregator. metrics may be nil to disable the
// Prometheus mirror.
func New(metrics *Metrics) *Aggregator {
	return &Aggregator{
		provider: make(map[string]*providerCounters),
		metrics:  metrics,
	}
}

func (a *Aggregator) providerCounters(name string) *providerCounters {
	a.mu.RLock()
	pc, ok := a.provider[name]
	a.mu.RUnlock()
	if ok {
		return pc
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if pc, ok := a.provider[name]; ok {
		return pc
	}
	pc = &providerCounters{}
	a.provider[name] = pc
	return pc
}

// RecordAttempt increments the attempt counter for providerName.
func (a *Aggregator) RecordAttempt(providerName string) {
	atomic.AddInt64(&a.providerCounters(providerName).attempts, 1)
	if a.metrics != nil {
		a.metrics.ProviderAttemptsTotal.WithLabelValues(providerName, "attempt").Inc()
	}
}

// RecordSuccess records a successful adapter invocation and a completed
// successful request.
func (a *Aggregator) RecordSuccess(providerName string) {
	atomic.AddInt64(&a.providerCounters(providerName).successes, 1)
	atomic.AddInt64(&a.totalRequests, 1)
	atomic.AddInt64(&a.successfulRequests, 1)
	name := providerName
	a.lastUsed.Store(&name)
	if a.metrics != nil {
		a.metrics.ProviderAttemptsTotal.WithLabelValues(providerName, "success").Inc()
		a.metrics.RequestsTotal.WithLabelValues("success").Inc()
	}
}

// RecordFailure records a failed adapter invocation for providerName,
// without yet declaring the overall request failed (failover may still
// succeed on the next candidate).
func (a *Aggregator) RecordFailure(providerName string) {
	atomic.AddInt64(&a.providerCounters(providerName).failures, 1)
	if a.metrics != nil {
		a.metrics.ProviderAttemptsTotal.WithLabelValues(providerName, "failure").Inc()
	}
}

// RecordSkippedOpen records that providerName was skipped because its
// breaker was Open within cooldown.
func (a *Aggregator) RecordSkippedOpen(providerName string) {
	atomic.AddInt64(&a.providerCounters(providerName).skippedOpen, 1)
	if a.metrics != nil {
		a.metrics.ProviderAttemptsTotal.WithLabelValues(providerName, "skipped_open").Inc()
	}
}

// RecordRequestFailed records one terminally failed request: either
// AllProvidersFailed or a permanent error surfaced without failover.
func (a *Aggregator) RecordRequestFailed() {
	atomic.AddInt64(&a.totalRequests, 1)
	atomic.AddInt64(&a.failedRequests, 1)
	if a.metrics != nil {
		a.metrics.RequestsTotal.WithLabelValues("failed").Inc()
	}
}

// GetRequestStats returns the current process-wide counters.
func (a *Aggregator) GetRequestStats() RequestStats {
	a.mu.RLock()
	used := make([]string, 0, len(a.provider))
	for name, pc := range a.provider {
		if atomic.LoadInt64(&pc.attempts) > 0 {
			used = append(used, name)
		}
	}
	a.mu.RUnlock()

	return RequestStats{
		TotalRequests:      atomic.LoadInt64(&a.totalRequests),
		SuccessfulRequests: atomic.LoadInt64(&a.successfulRequests),
		FailedRequests:     atomic.LoadInt64(&a.failedRequests),
		ProvidersUsed:      used,
	}
}

// GetProviderCounters returns the counters recorded for providerName, if
// anything (an attempt, success, failure, or skip) has been recorded for
// it since the last ResetStats.
func (a *Aggregator) GetProviderCounters(providerName string) (ProviderCounters, bool) {
	a.mu.RLock()
	pc, ok := a.provider[providerName]
	a.mu.RUnlock()
	if !ok {
		return ProviderCounters{}, false
	}
	return ProviderCounters{
		Attempts:    atomic.LoadInt64(&pc.attempts),
		Successes:   atomic.LoadInt64(&pc.successes),
		Failures:    atomic.LoadInt64(&pc.failures),
		SkippedOpen: atomic.LoadInt64(&pc.skippedOpen),
	}, true
}

// GetLastUsedProvider returns the provider that served the most recent
// successful ChatCompletion call, if any.
func (a *Aggregator) GetLastUsedProvider() (string, bool) {
	v := a.lastUsed.Load()
	if v == nil {
		return "", false
	}
	return *v, true
}

// ResetStats zeroes every counter and clears the last-used provider. The
// Prometheus mirror is left untouched — Prometheus counters are meant to
// be monotonic for the lifetime of the process.
func (a *Aggregator) ResetStats() {
	atomic.StoreInt64(&a.totalRequests, 0)
	atomic.StoreInt64(&a.successfulRequests, 0)
	atomic.StoreInt64(&a.failedRequests, 0)
	a.lastUsed.Store(nil)

	a.mu.Lock()
	a.provider = make(map[string]*providerCounters)
	a.mu.Unlock()
}
