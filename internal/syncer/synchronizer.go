package syncer

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/haasonsaas/flexigate/internal/breaker"
	"github.com/haasonsaas/flexigate/internal/retry"
)

// BreakerLookup resolves a provider name to its breaker. Implemented by
// internal/registry.Registry; the Synchronizer only ever borrows a
// reference, the registry stays the owner.
type BreakerLookup interface {
	Lookup(providerName string) (*breaker.Breaker, bool)
	Names() []string
}

// Synchronizer distributes local breaker transitions to a pub/sub Channel
// and applies remote events back onto the local Registry's breakers. It
// implements breaker.Publisher.
type Synchronizer struct {
	channel  Channel
	topic    string
	keys     keyer
	workerID string
	lookup   BreakerLookup
	logger   *slog.Logger

	reconnect     func(ctx context.Context) (Channel, error)
	snapshotStore snapshotStore
	sf            singleflight.Group

	cancel context.CancelFunc
}

// snapshotStore is implemented by RedisChannel; kept as a narrow interface
// so the Synchronizer doesn't need to know it's talking to Redis.
type snapshotStore interface {
	GetSnapshot(ctx context.Context, key string) ([]byte, error)
	PutSnapshot(ctx context.Context, key string, payload []byte) error
}

// keyer is implemented by RedisConfig to build topic/snapshot-key names;
// kept narrow so a non-Redis Channel can still supply keys if it wants to.
type keyer interface {
	Topic() string
	SnapshotKey(provider string) string
}

// New builds a Synchronizer around an already-connected channel. reconnect
// is called by the background loop after a backend failure; pass nil to
// disable automatic reconnection (local-only degraded mode forever).
func New(channel Channel, keys keyer, lookup BreakerLookup, logger *slog.Logger, reconnect func(ctx context.Context) (Channel, error)) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Synchronizer{
		channel:   channel,
		topic:     keys.Topic(),
		keys:      keys,
		workerID:  uuid.NewString(),
		lookup:    lookup,
		logger:    logger.With(slog.String("component", "syncer")),
		reconnect: reconnect,
	}
	if store, ok := channel.(snapshotStore); ok {
		s.snapshotStore = store
	}
	return s
}

// Start rehydrates snapshots for every currently-registered provider, then
// runs the subscribe loop until ctx is cancelled. Backend connection
// failures are logged and retried in the background; they never make
// Start return an error — losing the coordination backend only degrades
// synchronization to per-process local breakers.
func (s *Synchronizer) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.rehydrateAll(runCtx)

	go s.runLoop(runCtx)
}

// Stop cancels the background subscribe/reconnect loop.
func (s *Synchronizer) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Synchronizer) runLoop(ctx context.Context) {
	backoffCfg := retry.Config{MaxAttempts: 0, BaseDelay: time.Second, MaxDelay: 30 * time.Second, JitterFraction: 0.2}
	attempt := 0

	for {
		if ctx.Err() != nil {
			return
		}

		group, gctx := errgroup.WithContext(ctx)
		group.Go(func() error {
			return s.channel.Subscribe(gctx, s.topic, s.handleRaw)
		})
		err := group.Wait()

		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.logger.Warn("syncer: subscription lost, degrading to local-only breakers", slog.String("error", err.Error()))
		}

		if s.reconnect == nil {
			return
		}

		attempt++
		d := retry.Backoff(backoffCfg, attempt, 0.5)
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		newChannel, rerr := s.reconnect(ctx)
		if rerr != nil {
			s.logger.Warn("syncer: reconnect attempt failed", slog.String("error", rerr.Error()), slog.Int("attempt", attempt))
			continue
		}
		s.channel = newChannel
		attempt = 0
		s.logger.Info("syncer: reconnected to coordination backend")
	}
}

func (s *Synchronizer) handleRaw(payload []byte) {
	event, err := unmarshalEvent(payload)
	if err != nil {
		s.logger.Warn("syncer: dropping malformed event", slog.String("error", err.Error()))
		return
	}
	if event.WorkerID == s.workerID {
		return
	}

	b, ok := s.lookup.Lookup(event.ProviderName)
	if !ok {
		return
	}
	b.ApplyRemote(event.Snapshot.toBreakerSnapshot(), event.Timestamp)
}

// PublishTransition implements breaker.Publisher. Coalescing of
// failure_recorded/success_recorded has already happened inside the
// breaker; this always publishes what it's given.
func (s *Synchronizer) PublishTransition(providerName string, transition breaker.Transition, snap breaker.Snapshot) {
	event := Event{
		EventID:      uuid.NewString(),
		WorkerID:     s.workerID,
		Timestamp:    time.Now(),
		ProviderName: providerName,
		Transition:   transition,
		Snapshot:     toEventSnapshot(snap),
	}
	payload, err := marshalEvent(event)
	if err != nil {
		s.logger.Warn("syncer: failed to marshal event", slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.channel.Publish(ctx, s.topic, payload); err != nil {
		s.logger.Warn("syncer: publish failed, peers will not observe this transition", slog.String("error", err.Error()))
	}
	if s.snapshotStore != nil {
		key := s.keys.SnapshotKey(providerName)
		if err := s.snapshotStore.PutSnapshot(ctx, key, payload); err != nil {
			s.logger.Warn("syncer: snapshot write failed", slog.String("error", err.Error()))
		}
	}
}

func (s *Synchronizer) rehydrateAll(ctx context.Context) {
	if s.snapshotStore == nil {
		return
	}
	for _, name := range s.lookup.Names() {
		name := name
		_, _, _ = s.sf.Do(name, func() (any, error) {
			s.rehydrateOne(ctx, name)
			return nil, nil
		})
	}
}

func (s *Synchronizer) rehydrateOne(ctx context.Context, providerName string) {
	b, ok := s.lookup.Lookup(providerName)
	if !ok {
		return
	}
	payload, err := s.snapshotStore.GetSnapshot(ctx, s.keys.SnapshotKey(providerName))
	if err != nil {
		s.logger.Warn("syncer: snapshot read failed", slog.String("provider", providerName), slog.String("error", err.Error()))
		return
	}
	if payload == nil {
		return
	}
	event, err := unmarshalEvent(payload)
	if err != nil {
		s.logger.Warn("syncer: malformed snapshot", slog.String("provider", providerName), slog.String("error", err.Error()))
		return
	}
	b.ApplyRemote(event.Snapshot.toBreakerSnapshot(), event.Timestamp)
}
