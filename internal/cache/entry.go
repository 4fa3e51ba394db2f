// Package cache implements the dual-tier stale-while-revalidate cache: a
// fast in-process edge tier backed by an optionally-absent shared slow
// tier, with background revalidation handed off to a caller-supplied work
// queue.
package cache

import "time"

// EndpointClass selects the CacheConfig policy applied to a key.
type EndpointClass int

const (
	ClassAggregated EndpointClass = iota
	ClassDataCenters
	ClassWorlds
)

// Policy is the per-endpoint-class cache configuration: edgeTtl and slowTtl
// are independent so each tier can be tuned on its own, and swrWindow is the
// additional stale-but-serveable window shared by both tiers.
type Policy struct {
	EdgeTTL   time.Duration
	SlowTTL   time.Duration
	SWRWindow time.Duration
	KeyPrefix string
}

// Policies is the finite, process-wide table of endpoint-class policies.
var Policies = map[EndpointClass]Policy{
	ClassAggregated: {
		EdgeTTL:   30 * time.Second,
		SlowTTL:   30 * time.Second,
		SWRWindow: 120 * time.Second,
		KeyPrefix: "aggregated",
	},
	ClassDataCenters: {
		EdgeTTL:   24 * time.Hour,
		SlowTTL:   24 * time.Hour,
		SWRWindow: 48 * time.Hour,
		KeyPrefix: "data-centers",
	},
	ClassWorlds: {
		EdgeTTL:   24 * time.Hour,
		SlowTTL:   24 * time.Hour,
		SWRWindow: 48 * time.Hour,
		KeyPrefix: "worlds",
	},
}

// Entry is the unit of cached content: an opaque payload plus the metadata
// needed to classify it as fresh, stale-serveable, or expired.
type Entry struct {
	Payload   []byte
	CachedAt  time.Time
	TTL       time.Duration
	SWRWindow time.Duration
}

// Age reports how long ago the entry was stored.
func (e Entry) Age() time.Duration {
	return time.Since(e.CachedAt)
}

// Fresh reports whether the entry may be served without triggering
// revalidation.
func (e Entry) Fresh() bool {
	return e.Age() <= e.TTL
}

// Serveable reports whether the entry may be returned to a caller at all
// (fresh or stale-serveable). An entry that fails this MUST NOT be served.
func (e Entry) Serveable() bool {
	return e.Age() <= e.TTL+e.SWRWindow
}

// Stale reports whether the entry is past its TTL but still serveable: it
// may be returned as-is, and serving it triggers a background revalidation.
func (e Entry) Stale() bool {
	return e.Age() > e.TTL && e.Serveable()
}
