// Package metrics defines the Prometheus metrics emitted by the edge proxy.
// It keeps label sets low-cardinality: cache-source and outcome values are
// bounded enums, never raw keys or IDs.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// requestsTotal counts client-facing responses by method, status, and
	// cache outcome (HIT/MISS/BYPASS).
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeproxy_requests_total",
			Help: "Total client-facing responses by method, status and cache outcome",
		},
		[]string{"method", "status", "cache"},
	)
	// requestDuration captures end-to-end request latency as observed at the edge.
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edgeproxy_request_duration_seconds",
			Help:    "End-to-end request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "cache"},
	)
	// cacheLookupsTotal counts cache lookups by source (edge/slow/upstream) and staleness.
	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeproxy_cache_lookups_total",
			Help: "Total cache lookups by source and staleness",
		},
		[]string{"source", "stale"},
	)
	// revalidationsTotal counts background revalidations by outcome.
	revalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeproxy_revalidations_total",
			Help: "Total background revalidations by outcome (success/failure)",
		},
		[]string{"outcome"},
	)
	// coalescedInFlight reports the current size of the coalescer's in-flight map.
	coalescedInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "edgeproxy_coalescer_inflight",
			Help: "Current number of in-flight coalesced upstream fetches",
		},
	)
	// rateLimitDecisionsTotal counts rate limiter admit/deny decisions.
	rateLimitDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeproxy_ratelimit_decisions_total",
			Help: "Total rate limiter decisions by outcome (allow/deny)",
		},
		[]string{"outcome"},
	)
	// upstreamRequestsTotal counts calls to the Universalis upstream by status.
	upstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeproxy_upstream_requests_total",
			Help: "Total requests issued to the upstream API by outcome status",
		},
		[]string{"status"},
	)
	// upstreamDuration measures upstream fetch latency.
	upstreamDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "edgeproxy_upstream_duration_seconds",
			Help:    "Upstream fetch duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	// bgWorkQueueDepth reports the depth of the background work queue (waiting only).
	bgWorkQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "edgeproxy_bgwork_queue_depth",
			Help: "Current background work queue depth (waiting only)",
		},
	)
	// bgWorkDropped counts background tasks dropped because the queue was full.
	bgWorkDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "edgeproxy_bgwork_dropped_total",
			Help: "Total background work tasks dropped due to a full queue",
		},
	)
)

func init() {
	prometheus.MustRegister(
		requestsTotal,
		requestDuration,
		cacheLookupsTotal,
		revalidationsTotal,
		coalescedInFlight,
		rateLimitDecisionsTotal,
		upstreamRequestsTotal,
		upstreamDuration,
		bgWorkQueueDepth,
		bgWorkDropped,
	)
}

// normCacheLabel normalizes the cache label to a bounded set of values.
func normCacheLabel(v string) string {
	if v == "" {
		return "BYPASS"
	}
	return v
}

// ObserveRequest records a client-facing response.
func ObserveRequest(method string, status int, cache string, dur time.Duration) {
	cache = normCacheLabel(cache)
	requestsTotal.WithLabelValues(method, strconv.Itoa(status), cache).Inc()
	requestDuration.WithLabelValues(method, cache).Observe(dur.Seconds())
}

// ObserveCacheLookup records a cache lookup outcome.
func ObserveCacheLookup(source string, stale bool) {
	cacheLookupsTotal.WithLabelValues(source, strconv.FormatBool(stale)).Inc()
}

// ObserveRevalidation records a background revalidation outcome.
func ObserveRevalidation(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	revalidationsTotal.WithLabelValues(outcome).Inc()
}

// SetCoalescedInFlight sets the current in-flight coalescer map size.
func SetCoalescedInFlight(n int) { coalescedInFlight.Set(float64(n)) }

// ObserveRateLimitDecision records an admit/deny decision.
func ObserveRateLimitDecision(allowed bool) {
	outcome := "allow"
	if !allowed {
		outcome = "deny"
	}
	rateLimitDecisionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveUpstreamRequest records an upstream fetch outcome and duration.
func ObserveUpstreamRequest(status string, dur time.Duration) {
	upstreamRequestsTotal.WithLabelValues(status).Inc()
	upstreamDuration.Observe(dur.Seconds())
}

// SetBgWorkQueueDepth sets the current background queue depth.
func SetBgWorkQueueDepth(depth int) { bgWorkQueueDepth.Set(float64(depth)) }

// BgWorkDroppedInc increments the dropped background-task counter.
func BgWorkDroppedInc() { bgWorkDropped.Inc() }

// Handler returns the standard Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
