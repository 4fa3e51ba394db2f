package cache

import (
	"time"

	"universalis-edge-proxy/internal/coalesce"
	"universalis-edge-proxy/internal/metrics"
)

// Source identifies which tier produced a served payload.
type Source string

const (
	SourceEdge     Source = "edge"
	SourceSlow     Source = "slow"
	SourceUpstream Source = "upstream"
)

// Result is what Lookup hands back to the router: a payload plus enough
// provenance to set the cache-debug headers.
type Result struct {
	Payload []byte
	Source  Source
	Stale   bool
}

// Background is the fire-and-forget work handle the cache enqueues
// revalidations and tier writes onto. *bgwork.Pool satisfies this.
type Background interface {
	Submit(fn func())
}

// Fetch retrieves a fresh payload from upstream for key. Returning an error
// leaves existing cached data (if any) untouched.
type Fetch func() ([]byte, error)

// Cache is the dual-tier stale-while-revalidate cache described by the
// lookup protocol: probe edge, then slow, then fall through to a coalesced
// upstream fetch, writing results back to both tiers asynchronously.
type Cache struct {
	edge   *edgeTier
	slow   SlowTier // nil means edge-tier-only operation
	bg     Background
	flight *coalesce.Coalescer[[]byte]
}

// New constructs a Cache. slow may be nil, in which case the system
// operates on the edge tier alone, per the slow tier's "optionally absent"
// contract.
func New(maxEdgeEntries int, slow SlowTier, bg Background) *Cache {
	return &Cache{
		edge:   newEdgeTier(maxEdgeEntries),
		slow:   slow,
		bg:     bg,
		flight: coalesce.New[[]byte](),
	}
}

// Lookup implements the cache's lookup protocol for key under policy,
// fetching from upstream via fetch on a full miss.
func (c *Cache) Lookup(key string, policy Policy, fetch Fetch) (Result, error) {
	if ent, ok := c.edge.get(key); ok {
		stale := ent.Stale()
		metrics.ObserveCacheLookup(string(SourceEdge), stale)
		if stale {
			c.revalidate(key, policy, fetch)
		}
		return Result{Payload: ent.Payload, Source: SourceEdge, Stale: stale}, nil
	}

	if c.slow != nil {
		if ent, ok := c.slow.Get(key); ok {
			stale := ent.Stale()
			metrics.ObserveCacheLookup(string(SourceSlow), stale)

			// Promote into the edge tier so subsequent local lookups skip
			// the slow probe entirely.
			c.bg.Submit(func() { c.edge.set(key, ent) })

			if stale {
				c.revalidate(key, policy, fetch)
			}
			return Result{Payload: ent.Payload, Source: SourceSlow, Stale: stale}, nil
		}
	}

	metrics.ObserveCacheLookup(string(SourceUpstream), false)
	payload, err := c.flight.Do(key, func() ([]byte, error) { return fetch() })
	metrics.SetCoalescedInFlight(c.flight.InFlightCount())
	if err != nil {
		return Result{}, err
	}

	c.storeBoth(key, policy, payload)
	return Result{Payload: payload, Source: SourceUpstream, Stale: false}, nil
}

// revalidate enqueues a coalesced background refresh under a namespace
// distinct from the in-band key, so revalidations never starve (or are
// starved by) ordinary requests for the same key.
func (c *Cache) revalidate(key string, policy Policy, fetch Fetch) {
	c.bg.Submit(func() {
		revKey := RevalidationKey(key)
		payload, err := c.flight.Do(revKey, func() ([]byte, error) { return fetch() })
		if err != nil {
			metrics.ObserveRevalidation(false)
			return
		}
		metrics.ObserveRevalidation(true)
		c.storeBoth(key, policy, payload)
	})
}

// storeBoth writes payload into both tiers with fresh metadata. Each tier's
// write is independent and swallows its own failure, per the cache's
// failure contract: a write never blocks or fails the response path.
func (c *Cache) storeBoth(key string, policy Policy, payload []byte) {
	now := time.Now()
	edgeEnt := Entry{Payload: payload, CachedAt: now, TTL: policy.EdgeTTL, SWRWindow: policy.SWRWindow}

	c.bg.Submit(func() {
		c.edge.set(key, edgeEnt)
	})

	if c.slow != nil {
		slowEnt := Entry{Payload: payload, CachedAt: now, TTL: policy.SlowTTL, SWRWindow: policy.SWRWindow}
		c.bg.Submit(func() {
			c.slow.Set(key, slowEnt)
		})
	}
}

// Delete removes key from whichever tiers hold it.
func (c *Cache) Delete(key string) {
	c.edge.delete(key)
	if c.slow != nil {
		c.slow.Delete(key)
	}
}

// EdgeStats exposes the edge tier's hit/miss/eviction counters.
func (c *Cache) EdgeStats() EdgeStats {
	return c.edge.Stats()
}
