package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the reference Redis pub/sub backend.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Namespace string
}

// Topic returns the pub/sub channel name for a namespace:
// "flexiai:cb:{namespace}".
func (c RedisConfig) Topic() string {
	return fmt.Sprintf("flexiai:cb:%s", c.Namespace)
}

// SnapshotKey returns the optional rehydration key for one provider:
// "flexiai:cb:{namespace}:state:{provider}".
func (c RedisConfig) SnapshotKey(providerName string) string {
	return fmt.Sprintf("flexiai:cb:%s:state:%s", c.Namespace, providerName)
}

// RedisChannel is the reference Channel backend, grounded on the Redis
// client construction and health-check pattern used throughout the
// example corpus's cache layers.
type RedisChannel struct {
	client *redis.Client
	cfg    RedisConfig
	logger *slog.Logger
}

// NewRedisChannel dials Redis and verifies connectivity with a single Ping,
// returning an error when the ping fails; the CLI's gateway wiring treats
// that as a startup failure. The Synchronizer's background reconnection
// covers only a subscription lost after Start, not a failed first dial.
func NewRedisChannel(cfg RedisConfig, logger *slog.Logger) (*RedisChannel, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("syncer: connect to redis: %w", err)
	}

	return &RedisChannel{
		client: client,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "syncer.redis")),
	}, nil
}

// Publish sends payload on topic.
func (r *RedisChannel) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := r.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("syncer: publish: %w", err)
	}
	return nil
}

// Subscribe runs handler for every message received on topic until ctx is
// cancelled or the subscription errors. It blocks the calling goroutine.
func (r *RedisChannel) Subscribe(ctx context.Context, topic string, handler func([]byte)) error {
	pubsub := r.client.Subscribe(ctx, topic)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("syncer: subscribe: %w", err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			handler([]byte(msg.Payload))
		}
	}
}

// GetSnapshot reads the rehydration key for one provider, if present.
func (r *RedisChannel) GetSnapshot(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("syncer: get snapshot: %w", err)
	}
	return val, nil
}

// PutSnapshot writes the rehydration key for one provider.
func (r *RedisChannel) PutSnapshot(ctx context.Context, key string, payload []byte) error {
	if err := r.client.Set(ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("syncer: put snapshot: %w", err)
	}
	return nil
}

// Close releases the underlying Redis client.
func (r *RedisChannel) Close() error {
	return r.client.Close()
}
