// Package ratelimit implements a per-identifier sliding-window rate
// limiter: admission for an identifier depends on the count of its requests
// within the most recent window, not fixed calendar buckets.
//
// It deliberately does not reuse golang.org/x/time/rate (token bucket) or
// the token-bucket middleware elsewhere in this codebase's ancestry: token
// bucket allows bursts beyond the nominal rate inside a window, which this
// spec's exactness requirements on ledger length rule out. See DESIGN.md.
package ratelimit

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"universalis-edge-proxy/internal/metrics"
)

const (
	// sweepInterval is the nominal piggybacked-sweep cadence, jittered
	// +/-20% the same way the coalescer's safety sweep is, to avoid
	// synchronized pruning bursts across workers.
	sweepInterval = 10 * time.Second
)

type ledger struct {
	timestamps []time.Time
}

// Limiter enforces a sliding-window (maxRequests, window) admission policy
// per identifier.
type Limiter struct {
	maxRequests int
	window      time.Duration

	mu          sync.Mutex
	ledgers     map[string]*ledger
	lastSweep   time.Time
}

// New constructs a Limiter admitting at most maxRequests per window for any
// single identifier.
func New(maxRequests int, window time.Duration) *Limiter {
	return &Limiter{
		maxRequests: maxRequests,
		window:      window,
		ledgers:     make(map[string]*ledger),
		lastSweep:   time.Now(),
	}
}

// Decision reports the outcome of a Check call.
type Decision struct {
	Allowed   bool
	Remaining int
	// ResetIn is seconds until the oldest counted request exits the window
	// (on denial), or the window itself (on admission into an empty ledger
	// or any admission, per spec: "window on admission, oldest-expiry on
	// denial").
	ResetIn int
}

// Check decides whether this arrival for id is admitted and, if so, records
// it. The sweep of stale ledgers is piggybacked on this call rather than
// run on a timer, so pruning load is proportional to traffic.
func (l *Limiter) Check(id string) Decision {
	now := time.Now()
	l.maybeSweep(now)

	l.mu.Lock()
	defer l.mu.Unlock()

	led, ok := l.ledgers[id]
	if !ok {
		led = &ledger{}
		l.ledgers[id] = led
	}

	led.timestamps = dropExpired(led.timestamps, now, l.window)

	if len(led.timestamps) >= l.maxRequests {
		oldest := led.timestamps[0]
		resetIn := int(math.Ceil(oldest.Add(l.window).Sub(now).Seconds()))
		if resetIn < 1 {
			resetIn = 1
		}
		metrics.ObserveRateLimitDecision(false)
		return Decision{Allowed: false, Remaining: 0, ResetIn: resetIn}
	}

	led.timestamps = append(led.timestamps, now)
	metrics.ObserveRateLimitDecision(true)
	return Decision{
		Allowed:   true,
		Remaining: l.maxRequests - len(led.timestamps),
		ResetIn:   int(l.window.Seconds()),
	}
}

func dropExpired(timestamps []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	i := 0
	for i < len(timestamps) && !timestamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return timestamps
	}
	return append(timestamps[:0], timestamps[i:]...)
}

// maybeSweep drops ledgers that have gone fully empty and prunes expired
// timestamps from the rest, piggybacked on the hot path the same way the
// coalescer's safety sweep is.
func (l *Limiter) maybeSweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	jitter := time.Duration(float64(sweepInterval) * (rand.Float64()*0.4 - 0.2))
	interval := sweepInterval + jitter

	if now.Sub(l.lastSweep) < interval {
		return
	}
	l.lastSweep = now

	for id, led := range l.ledgers {
		led.timestamps = dropExpired(led.timestamps, now, l.window)
		if len(led.timestamps) == 0 {
			delete(l.ledgers, id)
		}
	}
}

// MaxRequests returns the configured policy's request ceiling, for header
// construction (X-RateLimit-Limit).
func (l *Limiter) MaxRequests() int { return l.maxRequests }
