// Package httpapi wires the router, CORS policy, validation, cache-debug
// headers, and the top-level error handler into a net/http.ServeMux using
// Go 1.22's method+pattern routing.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"universalis-edge-proxy/internal/applog"
	"universalis-edge-proxy/internal/cache"
	"universalis-edge-proxy/internal/httpapi/apierror"
	"universalis-edge-proxy/internal/metrics"
	"universalis-edge-proxy/internal/ratelimit"
	"universalis-edge-proxy/internal/upstreamclient"
)

// Deps bundles the collaborators the router needs. Assembled once in
// cmd/server/main.go and passed to NewRouter.
type Deps struct {
	Cache       *cache.Cache
	Limiter     *ratelimit.Limiter
	Upstream    *upstreamclient.Client
	CORS        CORSPolicy
	Environment string
	Version     string
	Datacenters []string
	Worlds      []string
}

// NewRouter builds the full HTTP surface described by the external
// interfaces contract.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", d.handleIndex)
	mux.HandleFunc("GET /health", d.handleHealth)
	mux.HandleFunc("GET /api/v2/aggregated/{datacenter}/{itemIds}", d.handleAggregated)
	mux.HandleFunc("GET /api/v2/data-centers", d.handleDataCenters)
	mux.HandleFunc("GET /api/v2/worlds", d.handleWorlds)

	var top http.Handler = mux
	top = d.withPreflightAndCORS(top)
	top = WithRequestID(top)
	return d.recoverMiddleware(top)
}

// withPreflightAndCORS intercepts OPTIONS globally (the mux has no route
// for it) and applies the CORS policy to every other response before the
// inner handler writes a status.
func (d Deps) withPreflightAndCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.CORS.Apply(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoverMiddleware guarantees CORS headers and a 500 JSON body survive a
// handler panic, matching the top-level error handler contract.
func (d Deps) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				err := fmt.Errorf("panic: %v", rec)
				applog.LogError(r, RequestIDFrom(r.Context()), 500, err)
				d.writeInternalError(w, r, err)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (d Deps) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "universalis-edge-proxy",
		"status":      "ok",
		"environment": d.Environment,
		"version":     d.Version,
	})
}

func (d Deps) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (d Deps) handleAggregated(w http.ResponseWriter, r *http.Request) {
	requestID := RequestIDFrom(r.Context())
	applog.LogRequest(r, requestID)
	start := time.Now()

	if !d.checkRateLimit(w, r, requestID, start) {
		return
	}

	datacenter := r.PathValue("datacenter")
	// The path segment may name either a datacenter or an individual world
	// within one (Universalis serves aggregates scoped to either).
	if err := ValidateDatacenter(datacenter, append(append([]string{}, d.Datacenters...), d.Worlds...)); err != nil {
		d.writeError(w, r, requestID, start, err)
		return
	}

	ids, err := ParseItemIDs(r.PathValue("itemIds"))
	if err != nil {
		d.writeError(w, r, requestID, start, err)
		return
	}

	key := cache.AggregatedKey(datacenter, ids)
	policy := cache.Policies[cache.ClassAggregated]
	path := "/api/v2/aggregated/" + strings.ToLower(datacenter) + "/" + joinIDs(ids)

	d.serveCached(w, r, requestID, start, key, policy, path)
}

func (d Deps) handleDataCenters(w http.ResponseWriter, r *http.Request) {
	requestID := RequestIDFrom(r.Context())
	applog.LogRequest(r, requestID)
	start := time.Now()

	if !d.checkRateLimit(w, r, requestID, start) {
		return
	}

	key := cache.DataCentersKey()
	policy := cache.Policies[cache.ClassDataCenters]
	d.serveCached(w, r, requestID, start, key, policy, "/api/v2/data-centers")
}

func (d Deps) handleWorlds(w http.ResponseWriter, r *http.Request) {
	requestID := RequestIDFrom(r.Context())
	applog.LogRequest(r, requestID)
	start := time.Now()

	if !d.checkRateLimit(w, r, requestID, start) {
		return
	}

	key := cache.WorldsKey()
	policy := cache.Policies[cache.ClassWorlds]
	d.serveCached(w, r, requestID, start, key, policy, "/api/v2/worlds")
}

// serveCached performs the cache lookup, falling through to upstream on
// miss, and writes the cache-debug headers plus the JSON body.
func (d Deps) serveCached(w http.ResponseWriter, r *http.Request, requestID string, start time.Time, key string, policy cache.Policy, upstreamPath string) {
	result, err := d.Cache.Lookup(key, policy, func() ([]byte, error) {
		// Detached from r.Context(): this closure may run as a coalesced
		// fetch shared by other waiters, or later as a background
		// revalidation long after ServeHTTP has returned and the request
		// context has been canceled. Neither path may be tied to this
		// request's lifetime.
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return d.Upstream.GetJSON(ctx, upstreamPath)
	})
	if err != nil {
		d.writeError(w, r, requestID, start, err)
		return
	}

	cacheHit := result.Source != cache.SourceUpstream
	w.Header().Set("Content-Type", "application/json")
	if cacheHit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	w.Header().Set("X-Cache-Source", string(result.Source))
	w.Header().Set("X-Cache-Stale", strconv.FormatBool(result.Stale))
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(policy.EdgeTTL.Seconds())))

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Payload)

	applog.LogResponse(r, requestID, http.StatusOK, string(result.Source), cacheHit, time.Since(start))
	metrics.ObserveRequest(r.Method, http.StatusOK, boolToCacheLabel(cacheHit), time.Since(start))
}

func boolToCacheLabel(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// checkRateLimit applies the sliding-window policy and, on denial, writes
// the 429 response itself and returns false.
func (d Deps) checkRateLimit(w http.ResponseWriter, r *http.Request, requestID string, start time.Time) bool {
	id := clientIdentifier(r)
	decision := d.Limiter.Check(id)

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limiter.MaxRequests()))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Unix()+int64(decision.ResetIn), 10))

	if !decision.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(decision.ResetIn))
		err := apierror.NewRateLimited(decision.ResetIn)
		d.writeError(w, r, requestID, start, err)
		return false
	}
	return true
}

// clientIdentifier resolves the rate-limit identity per the contract: the
// front proxy's client-IP header, else the first X-Forwarded-For entry,
// else "unknown". Addresses are accepted verbatim, never parsed.
func clientIdentifier(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return "unknown"
}

func (d Deps) writeError(w http.ResponseWriter, r *http.Request, requestID string, start time.Time, err error) {
	var apiErr *apierror.Error
	if !errors.As(err, &apiErr) {
		d.writeInternalError(w, r, err)
		return
	}

	status := apiErr.Status()
	if apiErr.RetryAfter > 0 && w.Header().Get("Retry-After") == "" {
		w.Header().Set("Retry-After", strconv.Itoa(apiErr.RetryAfter))
	}

	body := map[string]any{"error": apiErr.Message}
	switch apiErr.Kind {
	case apierror.RateLimited, apierror.UpstreamRateLimited:
		body["retryAfter"] = apiErr.RetryAfter
	case apierror.UpstreamStatus:
		body["upstreamStatus"] = apiErr.UpstreamStatus
	}

	applog.LogError(r, requestID, status, err)
	metrics.ObserveRequest(r.Method, status, "", time.Since(start))
	writeJSON(w, status, body)
}

func (d Deps) writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	body := map[string]string{"error": "Internal Server Error"}
	if d.Environment == "development" {
		body["message"] = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
