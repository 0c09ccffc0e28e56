package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/flexigate/internal/breaker"
)

// fakeChannel is an in-process Channel used to exercise Synchronizer
// without a real Redis server.
type fakeChannel struct {
	mu          sync.Mutex
	handlers    map[string][]func([]byte)
	published   []publishedMsg
	snapshots   map[string][]byte
	publishErr  error
	closeCalled bool
}

type publishedMsg struct {
	topic   string
	payload []byte
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		handlers:  make(map[string][]func([]byte)),
		snapshots: make(map[string][]byte),
	}
}

func (f *fakeChannel) Publish(_ context.Context, topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, publishedMsg{topic: topic, payload: payload})
	for _, h := range f.handlers[topic] {
		h(payload)
	}
	return nil
}

func (f *fakeChannel) Subscribe(ctx context.Context, topic string, handler func([]byte)) error {
	f.mu.Lock()
	f.handlers[topic] = append(f.handlers[topic], handler)
	f.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeChannel) Close() error {
	f.closeCalled = true
	return nil
}

func (f *fakeChannel) GetSnapshot(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshots[key], nil
}

func (f *fakeChannel) PutSnapshot(_ context.Context, key string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots[key] = payload
	return nil
}

// fakeLookup implements BreakerLookup over a static map.
type fakeLookup struct {
	breakers map[string]*breaker.Breaker
}

func (f *fakeLookup) Lookup(name string) (*breaker.Breaker, bool) {
	b, ok := f.breakers[name]
	return b, ok
}

func (f *fakeLookup) Names() []string {
	names := make([]string, 0, len(f.breakers))
	for n := range f.breakers {
		names = append(names, n)
	}
	return names
}

func TestPublishTransitionPublishesMarshaledEvent(t *testing.T) {
	ch := newFakeChannel()
	lookup := &fakeLookup{breakers: map[string]*breaker.Breaker{}}
	s := New(ch, RedisConfig{Namespace: "test"}, lookup, nil, nil)

	s.PublishTransition("openai", breaker.TransitionOpened, breaker.Snapshot{State: breaker.Open, FailureCount: 5})

	require.Len(t, ch.published, 1)
	event, err := unmarshalEvent(ch.published[0].payload)
	require.NoError(t, err)
	assert.Equal(t, "openai", event.ProviderName)
	assert.Equal(t, breaker.TransitionOpened, event.Transition)
	assert.Equal(t, breaker.Open, event.Snapshot.State)
	assert.Equal(t, 5, event.Snapshot.FailureCount)
	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, s.workerID, event.WorkerID)

	snap, err := ch.GetSnapshot(context.Background(), RedisConfig{Namespace: "test"}.SnapshotKey("openai"))
	require.NoError(t, err)
	assert.NotNil(t, snap, "publishing a transition should also persist the rehydration snapshot")
}

func TestHandleRawIgnoresOwnWorkerID(t *testing.T) {
	ch := newFakeChannel()
	target := breaker.New("openai", breaker.Config{}, nil)
	lookup := &fakeLookup{breakers: map[string]*breaker.Breaker{"openai": target}}
	s := New(ch, RedisConfig{Namespace: "test"}, lookup, nil, nil)

	event := Event{
		EventID:      "e1",
		WorkerID:     s.workerID,
		Timestamp:    time.Now(),
		ProviderName: "openai",
		Transition:   breaker.TransitionOpened,
		Snapshot:     EventSnapshot{State: breaker.Open, FailureCount: 9},
	}
	payload, err := marshalEvent(event)
	require.NoError(t, err)

	s.handleRaw(payload)
	assert.Equal(t, breaker.Closed, target.State(), "a worker must not apply its own published events")
}

func TestHandleRawAppliesRemoteEventFromPeer(t *testing.T) {
	ch := newFakeChannel()
	target := breaker.New("openai", breaker.Config{}, nil)
	lookup := &fakeLookup{breakers: map[string]*breaker.Breaker{"openai": target}}
	s := New(ch, RedisConfig{Namespace: "test"}, lookup, nil, nil)

	event := Event{
		EventID:      "e1",
		WorkerID:     "some-other-worker",
		Timestamp:    time.Now(),
		ProviderName: "openai",
		Transition:   breaker.TransitionOpened,
		Snapshot:     EventSnapshot{State: breaker.Open, FailureCount: 9},
	}
	payload, err := marshalEvent(event)
	require.NoError(t, err)

	s.handleRaw(payload)
	assert.Equal(t, breaker.Open, target.State())
	assert.Equal(t, 9, target.Snapshot().FailureCount)
}

func TestHandleRawDropsEventForUnknownProvider(t *testing.T) {
	ch := newFakeChannel()
	lookup := &fakeLookup{breakers: map[string]*breaker.Breaker{}}
	s := New(ch, RedisConfig{Namespace: "test"}, lookup, nil, nil)

	event := Event{EventID: "e1", WorkerID: "other", ProviderName: "unknown", Timestamp: time.Now()}
	payload, err := marshalEvent(event)
	require.NoError(t, err)

	assert.NotPanics(t, func() { s.handleRaw(payload) })
}

func TestHandleRawDropsMalformedPayload(t *testing.T) {
	ch := newFakeChannel()
	lookup := &fakeLookup{breakers: map[string]*breaker.Breaker{}}
	s := New(ch, RedisConfig{Namespace: "test"}, lookup, nil, nil)

	assert.NotPanics(t, func() { s.handleRaw([]byte("not json")) })
}

func TestStartRehydratesFromExistingSnapshots(t *testing.T) {
	ch := newFakeChannel()
	target := breaker.New("openai", breaker.Config{}, nil)
	lookup := &fakeLookup{breakers: map[string]*breaker.Breaker{"openai": target}}

	preexisting := Event{
		EventID:      "seed",
		WorkerID:     "seed-worker",
		Timestamp:    time.Now(),
		ProviderName: "openai",
		Transition:   breaker.TransitionOpened,
		Snapshot:     EventSnapshot{State: breaker.Open, FailureCount: 3},
	}
	payload, err := marshalEvent(preexisting)
	require.NoError(t, err)
	ch.snapshots[RedisConfig{Namespace: "test"}.SnapshotKey("openai")] = payload

	s := New(ch, RedisConfig{Namespace: "test"}, lookup, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	defer s.Stop()

	assert.Equal(t, breaker.Open, target.State())
	assert.Equal(t, 3, target.Snapshot().FailureCount)
}

func TestStartAndStopSubscribeLoop(t *testing.T) {
	ch := newFakeChannel()
	lookup := &fakeLookup{breakers: map[string]*breaker.Breaker{}}
	s := New(ch, RedisConfig{Namespace: "test"}, lookup, nil, nil)

	ctx := context.Background()
	s.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	s.Stop()
	time.Sleep(20 * time.Millisecond)
}

func TestCrossWorkerConvergence(t *testing.T) {
	ch := newFakeChannel()
	localBreaker := breaker.New("openai", breaker.Config{FailureThreshold: 1}, nil)
	peerBreaker := breaker.New("openai", breaker.Config{FailureThreshold: 1}, nil)

	localLookup := &fakeLookup{breakers: map[string]*breaker.Breaker{"openai": localBreaker}}
	peerLookup := &fakeLookup{breakers: map[string]*breaker.Breaker{"openai": peerBreaker}}

	localSync := New(ch, RedisConfig{Namespace: "test"}, localLookup, nil, nil)
	peerSync := New(ch, RedisConfig{Namespace: "test"}, peerLookup, nil, nil)

	localBreaker2 := breaker.New("openai", breaker.Config{FailureThreshold: 1}, localSync)
	localLookup.breakers["openai"] = localBreaker2

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = ch.Subscribe(ctx, localSync.topic, peerSync.handleRaw) }()
	time.Sleep(20 * time.Millisecond)

	_, err := breaker.Guard(localBreaker2, context.Background(), func(context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	require.Error(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, breaker.Open, peerBreaker.State(), "peer worker must converge to the breaker's opened state")
}
