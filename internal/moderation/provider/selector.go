package provider

import (
	"context"
	"time"

	"github.com/modsentinel/automod/infrastructure/resilience"
	"github.com/modsentinel/automod/internal/moderation/keyspace"
	"github.com/modsentinel/automod/internal/store"
)

const healthCacheTTL = 5 * time.Minute

// Candidate pairs a Provider with the circuit breaker guarding calls to it.
type Candidate struct {
	Provider Provider
	Breaker  *resilience.CircuitBreaker
}

// Selector implements the Provider Selector contract (§4.8): it picks the
// configured primary provider if healthy, else the fallback, skipping any
// excluded provider to support one-shot failover.
type Selector struct {
	store    store.Store
	primary  *Candidate
	fallback *Candidate
}

// NewSelector returns a Selector. Either candidate may be nil if its API
// key was not configured.
func NewSelector(s store.Store, primary, fallback *Candidate) *Selector {
	return &Selector{store: s, primary: primary, fallback: fallback}
}

// Select returns the first available candidate, skipping `excluded` (by
// provider type) to let the analyzer retry with the other provider after
// a failure. Returns (nil, false) if nothing is available.
func (s *Selector) Select(ctx context.Context, excluded string) (Provider, bool) {
	for _, c := range []*Candidate{s.primary, s.fallback} {
		if c == nil || c.Provider == nil {
			continue
		}
		if c.Provider.Type() == excluded {
			continue
		}
		if s.available(ctx, c) {
			return c.Provider, true
		}
	}
	return nil, false
}

func (s *Selector) available(ctx context.Context, c *Candidate) bool {
	if c.Breaker != nil && c.Breaker.State() == resilience.StateOpen {
		return false
	}
	return s.healthy(ctx, c.Provider)
}

// healthy consults the cached health-check outcome, refreshing it (with a
// fresh probe) once the ~5 min TTL has elapsed.
func (s *Selector) healthy(ctx context.Context, p Provider) bool {
	key := keyspace.ProviderHealth(p.Type())
	if cached, err := s.store.Get(ctx, key); err == nil {
		return cached == "ok"
	}

	err := p.HealthCheck(ctx)
	status := "ok"
	if err != nil {
		status = "down"
	}
	_ = s.store.Set(ctx, key, status, healthCacheTTL)
	return err == nil
}
