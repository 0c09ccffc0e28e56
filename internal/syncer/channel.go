// Package syncer distributes circuit breaker transitions across peer
// worker processes over a backend-agnostic pub/sub Channel, with a
// reference Redis implementation.
package syncer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/haasonsaas/flexigate/internal/breaker"
)

// Channel is the backend-agnostic pub/sub contract.
type Channel interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string, handler func([]byte)) error
	Close() error
}

// Event is the cross-process message published on every breaker
// transition and (rate-limited) counter update.
type Event struct {
	EventID      string             `json:"event_id"`
	WorkerID     string             `json:"worker_id"`
	Timestamp    time.Time          `json:"timestamp"`
	ProviderName string             `json:"provider_name"`
	Transition   breaker.Transition `json:"transition"`
	Snapshot     EventSnapshot      `json:"snapshot"`
}

// EventSnapshot is the wire form of breaker.Snapshot: OpenedAt is encoded
// as a nullable RFC3339 timestamp rather than Go's zero-value time.Time.
type EventSnapshot struct {
	State        breaker.State `json:"state"`
	FailureCount int           `json:"failure_count"`
	SuccessCount int           `json:"success_count"`
	OpenedAt     *time.Time    `json:"opened_at,omitempty"`
}

func toEventSnapshot(s breaker.Snapshot) EventSnapshot {
	es := EventSnapshot{State: s.State, FailureCount: s.FailureCount, SuccessCount: s.SuccessCount}
	if !s.OpenedAt.IsZero() {
		t := s.OpenedAt
		es.OpenedAt = &t
	}
	return es
}

func (es EventSnapshot) toBreakerSnapshot() breaker.Snapshot {
	s := breaker.Snapshot{State: es.State, FailureCount: es.FailureCount, SuccessCount: es.SuccessCount}
	if es.OpenedAt != nil {
		s.OpenedAt = *es.OpenedAt
	}
	return s
}

func marshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}

func unmarshalEvent(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}
