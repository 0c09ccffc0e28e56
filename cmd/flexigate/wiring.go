package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/haasonsaas/flexigate/internal/adapters/anthropicadapter"
	"github.com/haasonsaas/flexigate/internal/adapters/openaiadapter"
	"github.com/haasonsaas/flexigate/internal/breaker"
	"github.com/haasonsaas/flexigate/internal/gwconfig"
	"github.com/haasonsaas/flexigate/internal/provider"
	"github.com/haasonsaas/flexigate/internal/registry"
	"github.com/haasonsaas/flexigate/internal/router"
	"github.com/haasonsaas/flexigate/internal/stats"
	"github.com/haasonsaas/flexigate/internal/syncer"
)

// gateway bundles the wired-up core plus anything that needs an explicit
// shutdown (currently just the synchronizer's subscribe loop).
type gateway struct {
	client       *router.Client
	registry     *registry.Registry
	synchronizer *syncer.Synchronizer
}

func (g *gateway) Close() {
	if g.synchronizer != nil {
		g.synchronizer.Stop()
	}
}

// buildGateway wires a registry, optional Synchronizer, stats aggregator,
// and router.Client around an already-loaded cfg.
//
// Constructing the registry and the Synchronizer has a circular
// dependency: each provider's Breaker needs the Synchronizer as its
// Publisher, but the Synchronizer needs the Registry as its BreakerLookup.
// makeBreaker closes over the sync variable by reference, so it resolves
// to the real Synchronizer for every provider registered after sync is
// assigned below.
func buildGateway(cfg *gwconfig.Config, logger *slog.Logger) (*gateway, error) {
	metrics := stats.NewMetrics()
	agg := stats.New(metrics)

	var sync *syncer.Synchronizer
	makeBreaker := func(name string, _ provider.Config) *breaker.Breaker {
		pub := &metricsPublisher{metrics: metrics}
		if sync != nil {
			pub.next = sync
		}
		return breaker.New(name, cfg.CircuitBreaker.ToBreakerConfig(), pub)
	}
	reg := registry.New(makeBreaker)

	if cfg.Sync.Enabled && cfg.Sync.Backend == "redis" {
		redisCfg := syncer.RedisConfig{
			Addr:      fmt.Sprintf("%s:%d", cfg.Sync.Host, cfg.Sync.Port),
			Password:  cfg.Sync.Password,
			DB:        cfg.Sync.DB,
			Namespace: cfg.Sync.Namespace,
		}
		channel, err := syncer.NewRedisChannel(redisCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("connect sync backend: %w", err)
		}
		reconnect := func(ctx context.Context) (syncer.Channel, error) {
			return syncer.NewRedisChannel(redisCfg, logger)
		}
		sync = syncer.New(channel, redisCfg, reg, logger, reconnect)
	}

	for _, pc := range cfg.Providers {
		adapter, err := buildAdapter(pc)
		if err != nil {
			return nil, err
		}
		reg.Register(adapter, provider.Config{
			Name:     pc.Name,
			Priority: pc.Priority,
			APIKey:   pc.APIKey,
			Model:    pc.Model,
			Timeout:  pc.Timeout,
		})
	}

	if sync != nil {
		sync.Start(context.Background())
	}

	client := router.New(reg, agg, router.WithLogger(logger), router.WithRetryConfig(cfg.Retry.ToRetryConfig()), router.WithDebug(cfg.Debug))

	return &gateway{client: client, registry: reg, synchronizer: sync}, nil
}

// metricsPublisher mirrors every local breaker transition onto the
// flexigate_breaker_state gauge before forwarding it to the synchronizer.
type metricsPublisher struct {
	metrics *stats.Metrics
	next    breaker.Publisher
}

func (p *metricsPublisher) PublishTransition(providerName string, transition breaker.Transition, snap breaker.Snapshot) {
	p.metrics.BreakerState.WithLabelValues(providerName).Set(breakerStateValue(snap.State))
	if p.next != nil {
		p.next.PublishTransition(providerName, transition, snap)
	}
}

func breakerStateValue(state breaker.State) float64 {
	switch state {
	case breaker.HalfOpen:
		return 1
	case breaker.Open:
		return 2
	default:
		return 0
	}
}

func buildAdapter(pc gwconfig.ProviderConfig) (provider.Adapter, error) {
	switch pc.Driver {
	case "openai":
		return openaiadapter.New(pc.Name, pc.APIKey, pc.Model, pc.BaseURL), nil
	case "anthropic":
		return anthropicadapter.New(pc.Name, pc.APIKey, pc.Model, pc.BaseURL), nil
	default:
		return nil, &provider.Error{Kind: provider.KindConfiguration, Provider: pc.Name, Message: "unknown driver " + pc.Driver}
	}
}
