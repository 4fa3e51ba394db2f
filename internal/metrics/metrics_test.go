package metrics_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"universalis-edge-proxy/internal/metrics"
)

func TestObserveFunctions_DoNotPanic(t *testing.T) {
	metrics.ObserveRequest("GET", 200, "HIT", 10*time.Millisecond)
	metrics.ObserveCacheLookup("edge", false)
	metrics.ObserveRevalidation(true)
	metrics.ObserveRevalidation(false)
	metrics.SetCoalescedInFlight(3)
	metrics.ObserveRateLimitDecision(true)
	metrics.ObserveRateLimitDecision(false)
	metrics.ObserveUpstreamRequest("200", 5*time.Millisecond)
	metrics.SetBgWorkQueueDepth(2)
	metrics.BgWorkDroppedInc()
}

func TestHandler_ServesPrometheusExposition(t *testing.T) {
	metrics.ObserveRequest("GET", 200, "HIT", time.Millisecond)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("expected non-empty exposition body")
	}
}
