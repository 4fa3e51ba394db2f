package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisSlowTier is the optional shared slow tier, activated when
// SLOW_TIER_REDIS_ADDR is configured. Grounded on the pack's Redis-backed
// distributed cache (other_examples' dcache), trimmed to the subset this
// system needs: no distributed locking, no pub/sub invalidation fan-out
// (explicitly out of scope — see DESIGN.md), just get/set/delete of the
// same (payload, cachedAt, ttl, swrWindow) triple the in-process tier
// stores.
type redisSlowTier struct {
	client *redis.Client
	// fallback absorbs writes/reads when Redis itself is unreachable, so a
	// broker outage degrades to edge-tier-only behavior instead of errors
	// propagating to callers (cache probes/writes never throw, per the
	// cache's failure contract).
	fallback SlowTier
}

// NewRedis constructs a Redis-backed slow tier against addr. Connection
// failures are not surfaced here; they show up as cache misses at read time
// and swallowed errors at write time, falling back to the in-process tier.
func NewRedis(addr string) SlowTier {
	client := redis.NewClient(&redis.Options{Addr: addr})
	return &redisSlowTier{
		client:   client,
		fallback: NewInProcess(),
	}
}

type redisPayload struct {
	Payload   []byte        `json:"payload"`
	CachedAt  time.Time     `json:"cachedAt"`
	TTL       time.Duration `json:"ttl"`
	SWRWindow time.Duration `json:"swrWindow"`
}

func (r *redisSlowTier) Get(key string) (Entry, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return r.fallback.Get(key)
	}

	var p redisPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return r.fallback.Get(key)
	}

	ent := Entry{Payload: p.Payload, CachedAt: p.CachedAt, TTL: p.TTL, SWRWindow: p.SWRWindow}
	if !ent.Serveable() {
		r.Delete(key)
		return Entry{}, false
	}
	return ent, true
}

func (r *redisSlowTier) Set(key string, ent Entry) {
	p := redisPayload{Payload: ent.Payload, CachedAt: ent.CachedAt, TTL: ent.TTL, SWRWindow: ent.SWRWindow}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	expiry := ent.TTL + ent.SWRWindow
	if err := r.client.Set(ctx, key, raw, expiry).Err(); err != nil {
		r.fallback.Set(key, ent)
	}
}

func (r *redisSlowTier) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = r.client.Del(ctx, key).Err()
	r.fallback.Delete(key)
}
