// Package breaker implements the per-provider circuit breaker state
// machine: Closed, Open, and HalfOpen, with timed recovery and a bounded
// number of half-open probes.
package breaker

import (
	"context"
	"sync"
	"time"
)

// State is one of the three breaker states.
type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

// Config parameterizes one provider's breaker.
type Config struct {
	FailureThreshold  int
	SuccessThreshold  int
	Timeout           time.Duration
	HalfOpenMaxProbes int
}

// DefaultConfig is 5 failures to open, 2 successes to close, a 60s
// cooldown, and a single half-open probe.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:  5,
		SuccessThreshold:  2,
		Timeout:           60 * time.Second,
		HalfOpenMaxProbes: 1,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = d.SuccessThreshold
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.HalfOpenMaxProbes <= 0 {
		c.HalfOpenMaxProbes = d.HalfOpenMaxProbes
	}
	return c
}

// Snapshot is the {state, counters, opened_at} tuple published alongside
// every transition event and applied by the Synchronizer.
type Snapshot struct {
	State          State
	FailureCount   int
	SuccessCount   int
	OpenedAt       time.Time
	InFlightProbes int
}

// Transition names one state-machine edge, used to label published events.
type Transition string

const (
	TransitionOpened          Transition = "opened"
	TransitionHalfOpened      Transition = "half_opened"
	TransitionClosed          Transition = "closed"
	TransitionFailureRecorded Transition = "failure_recorded"
	TransitionSuccessRecorded Transition = "success_recorded"
)

// Publisher is notified of every transition/counter update so it can be
// relayed to peer workers. Implemented by internal/syncer.Synchronizer.
type Publisher interface {
	PublishTransition(provider string, transition Transition, snap Snapshot)
}

// noopPublisher satisfies Publisher when a Breaker is used standalone
// (e.g. in unit tests) without a Synchronizer.
type noopPublisher struct{}

func (noopPublisher) PublishTransition(string, Transition, Snapshot) {}

// OpenError is returned by Guard when the breaker rejects a call outright.
type OpenError struct {
	Provider string
}

func (e *OpenError) Error() string {
	return "circuit breaker open for provider " + e.Provider
}

// nowFunc is overridable in tests to control the clock deterministically.
var nowFunc = time.Now

// Breaker guards one provider's adapter invocations behind a short mutex.
// State updates under the lock are in-memory only, but the Publisher is
// called while the lock is held, so a Publisher that does network I/O
// (such as internal/syncer.Synchronizer) holds up other callers of this
// breaker until it returns.
type Breaker struct {
	provider string
	cfg      Config
	pub      Publisher

	mu             sync.Mutex
	state          State
	failureCount   int
	successCount   int
	openedAt       time.Time
	inFlightProbes int

	// lastRemoteTS is the timestamp of the last applied remote event;
	// older events are dropped so they cannot revert newer local state.
	lastRemoteTS time.Time

	// lastCounterPublish throttles failure_recorded/success_recorded
	// publications to at most one per 100ms per provider. State-change
	// transitions are never coalesced.
	lastCounterPublish time.Time
}

// New creates a Closed breaker for providerName. A nil Publisher is
// replaced with a no-op so Breaker is usable without a Synchronizer.
func New(providerName string, cfg Config, pub Publisher) *Breaker {
	if pub == nil {
		pub = noopPublisher{}
	}
	return &Breaker{
		provider: providerName,
		cfg:      cfg.normalized(),
		pub:      pub,
		state:    Closed,
	}
}

// Snapshot returns the breaker's current state under lock.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Breaker) snapshotLocked() Snapshot {
	return Snapshot{
		State:          b.state,
		FailureCount:   b.failureCount,
		SuccessCount:   b.successCount,
		OpenedAt:       b.openedAt,
		InFlightProbes: b.inFlightProbes,
	}
}

// State returns the current state without the rest of the snapshot.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Guard executes invoke under breaker b's protection: admission, the
// call, then the terminal success/failure transition. It is a free
// function (not a method) because Go methods cannot carry their own type
// parameters.
func Guard[T any](b *Breaker, ctx context.Context, invoke func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	admitted, err := b.admit()
	if err != nil {
		return zero, err
	}

	result, invokeErr := invoke(ctx)

	if invokeErr == nil {
		b.onSuccess(admitted)
		return result, nil
	}

	b.onFailure(admitted, ctx)
	return zero, invokeErr
}

// admit decides whether a call may proceed and, if the breaker is Open
// past its cooldown, flips it to HalfOpen and reserves a probe slot.
// admitted reports whether this call holds a HalfOpen probe slot.
func (b *Breaker) admit() (admitted bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return false, nil
	case HalfOpen:
		if b.inFlightProbes < b.cfg.HalfOpenMaxProbes {
			b.inFlightProbes++
			return true, nil
		}
		return false, &OpenError{Provider: b.provider}
	case Open:
		if nowFunc().Sub(b.openedAt) >= b.cfg.Timeout {
			b.state = HalfOpen
			b.inFlightProbes = 1
			b.publishTransitionLocked(TransitionHalfOpened)
			return true, nil
		}
		return false, &OpenError{Provider: b.provider}
	default:
		return false, &OpenError{Provider: b.provider}
	}
}

func (b *Breaker) onSuccess(wasProbe bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failureCount = 0
		b.publishCounterLocked(TransitionSuccessRecorded)
	case HalfOpen:
		if wasProbe && b.inFlightProbes > 0 {
			b.inFlightProbes--
		}
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.state = Closed
			b.failureCount = 0
			b.successCount = 0
			b.openedAt = time.Time{}
			b.inFlightProbes = 0
			b.publishTransitionLocked(TransitionClosed)
		}
	case Open:
		// A call admitted before a concurrent failure (or a remote event)
		// opened the breaker can succeed here; its success is ignored and
		// the breaker stays Open until its cooldown elapses.
	}
}

// onFailure records a failure. A call that failed because the caller's
// context was cancelled or expired is not a provider failure and must not
// move the breaker; only the probe slot is released.
func (b *Breaker) onFailure(wasProbe bool, ctx context.Context) {
	if ctx.Err() != nil {
		b.mu.Lock()
		if wasProbe && b.inFlightProbes > 0 {
			b.inFlightProbes--
		}
		b.mu.Unlock()
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.state = Open
			b.openedAt = nowFunc()
			b.publishTransitionLocked(TransitionOpened)
		} else {
			b.publishCounterLocked(TransitionFailureRecorded)
		}
	case HalfOpen:
		if wasProbe && b.inFlightProbes > 0 {
			b.inFlightProbes--
		}
		b.state = Open
		b.openedAt = nowFunc()
		b.failureCount = 0
		b.successCount = 0
		b.publishTransitionLocked(TransitionOpened)
	case Open:
		// Already open; nothing to record.
	}
}

// RecordFailure and RecordSuccess feed a plain terminal outcome through
// the breaker without a Guard invocation closure or a prior Allow call,
// for adapters/tests that want direct control. The router itself uses
// Allow and Complete.
func (b *Breaker) RecordSuccess() {
	b.onSuccess(b.popProbe())
}

func (b *Breaker) RecordFailure(ctx context.Context) {
	b.onFailure(b.popProbe(), ctx)
}

func (b *Breaker) popProbe() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == HalfOpen && b.inFlightProbes > 0 {
		return true
	}
	return false
}

// Allow exposes admit() for callers that need to separate admission from
// the terminal outcome — the router runs retries between the two, so it
// cannot use Guard's single invoke closure.
func (b *Breaker) Allow() (probe bool, err error) {
	return b.admit()
}

// Complete records the terminal outcome of a call admitted via Allow.
// probe must be the value Allow returned for that call.
func (b *Breaker) Complete(probe bool, ctx context.Context, success bool) {
	if success {
		b.onSuccess(probe)
		return
	}
	b.onFailure(probe, ctx)
}

// ReleaseProbe releases a probe slot reserved by Allow without touching
// failure/success counters — used when the final error is classified as
// permanent and must not influence the breaker at all.
func (b *Breaker) ReleaseProbe(probe bool) {
	if !probe {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == HalfOpen && b.inFlightProbes > 0 {
		b.inFlightProbes--
	}
}

func (b *Breaker) publishTransitionLocked(t Transition) {
	snap := b.snapshotLocked()
	b.lastCounterPublish = nowFunc()
	b.pub.PublishTransition(b.provider, t, snap)
}

// publishCounterLocked coalesces failure_recorded/success_recorded to at
// most one publication per 100ms per provider; state-change transitions
// always go through publishTransitionLocked instead.
func (b *Breaker) publishCounterLocked(t Transition) {
	now := nowFunc()
	if now.Sub(b.lastCounterPublish) < 100*time.Millisecond {
		return
	}
	b.lastCounterPublish = now
	b.pub.PublishTransition(b.provider, t, b.snapshotLocked())
}

// ApplyRemote applies a remote Snapshot observed at ts, enforcing the
// monotonic-application rule: an event older than the last one applied is
// dropped.
func (b *Breaker) ApplyRemote(snap Snapshot, ts time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !ts.After(b.lastRemoteTS) {
		return
	}
	b.lastRemoteTS = ts

	b.state = snap.State
	b.failureCount = snap.FailureCount
	b.successCount = snap.SuccessCount
	b.openedAt = snap.OpenedAt
	if b.state != HalfOpen {
		b.inFlightProbes = 0
	} else {
		b.inFlightProbes = snap.InFlightProbes
	}
}

// Reset returns the breaker to Closed with zeroed counters and forgets the
// last applied remote timestamp. Registry.Clear and Register-replacement
// do not call it; they build a fresh breaker instead.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failureCount = 0
	b.successCount = 0
	b.openedAt = time.Time{}
	b.inFlightProbes = 0
	b.lastRemoteTS = time.Time{}
}
