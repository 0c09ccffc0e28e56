// Package registry holds the process-wide, thread-safe mapping of
// provider name to its Adapter, Breaker, and Config.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/haasonsaas/flexigate/internal/breaker"
	"github.com/haasonsaas/flexigate/internal/provider"
)

// Entry pairs one provider's adapter with its breaker and config.
type Entry struct {
	Adapter      provider.Adapter
	Breaker      *breaker.Breaker
	Config       provider.Config
	RegisteredAt time.Time
}

// Registry is the process-wide provider registry. It is safe for
// concurrent use; lookups and List never hold the lock across I/O.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*Entry
	order    []string
	breakers func(name string, cfg provider.Config) *breaker.Breaker
}

// New builds an empty Registry. makeBreaker constructs a breaker for a
// newly-registered provider (wiring in the process's Publisher); pass nil
// to use breaker.DefaultConfig() with a no-op publisher.
func New(makeBreaker func(name string, cfg provider.Config) *breaker.Breaker) *Registry {
	if makeBreaker == nil {
		makeBreaker = func(name string, _ provider.Config) *breaker.Breaker {
			return breaker.New(name, breaker.DefaultConfig(), nil)
		}
	}
	return &Registry{
		entries:  make(map[string]*Entry),
		breakers: makeBreaker,
	}
}

// Register adds or replaces the Entry for cfg.Name. Registering the same
// name twice is equivalent to the second registration alone: the prior
// Entry's breaker is discarded and a fresh one is built.
func (r *Registry) Register(adapter provider.Adapter, cfg provider.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[cfg.Name]; !exists {
		r.order = append(r.order, cfg.Name)
	}

	r.entries[cfg.Name] = &Entry{
		Adapter:      adapter,
		Breaker:      r.breakers(cfg.Name, cfg),
		Config:       cfg,
		RegisteredAt: time.Now(),
	}
}

// Get returns the Entry for name, if registered.
func (r *Registry) Get(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Lookup implements internal/syncer.BreakerLookup.
func (r *Registry) Lookup(name string) (*breaker.Breaker, bool) {
	e, ok := r.Get(name)
	if !ok {
		return nil, false
	}
	return e.Breaker, true
}

// Names implements internal/syncer.BreakerLookup: every registered
// provider name, in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// List returns every registered Entry ordered by priority ascending, then
// by registration order for ties — the router's candidate-list order.
func (r *Registry) List() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*Entry, 0, len(r.order))
	for _, name := range r.order {
		entries = append(entries, r.entries[name])
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Config.Priority < entries[j].Config.Priority
	})
	return entries
}

// Clear removes every registered provider. A subsequent Register call
// produces a Breaker in state Closed with zeroed counters.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]*Entry)
	r.order = nil
}
