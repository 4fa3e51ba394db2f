package cache

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// syncBackground runs submitted work immediately and synchronously, so
// tests can assert on tier state right after a Lookup call returns without
// racing a real worker pool.
type syncBackground struct{}

func (syncBackground) Submit(fn func()) { fn() }

func TestLookup_MissFetchesAndPopulatesBothTiers(t *testing.T) {
	c := New(8, NewInProcess(), syncBackground{})
	policy := Policies[ClassAggregated]

	var calls int64
	fetch := func() ([]byte, error) {
		atomic.AddInt64(&calls, 1)
		return []byte("payload"), nil
	}

	res, err := c.Lookup("k", policy, fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != SourceUpstream || res.Stale {
		t.Fatalf("unexpected result: %+v", res)
	}
	if string(res.Payload) != "payload" {
		t.Fatalf("unexpected payload: %q", res.Payload)
	}
	if atomic.LoadInt64(&calls) != 1 {
		t.Fatalf("expected exactly 1 fetch, got %d", calls)
	}

	if _, ok := c.edge.get("k"); !ok {
		t.Fatal("expected edge tier to be populated after miss")
	}
}

func TestLookup_EdgeHitWithinTTLSkipsFetch(t *testing.T) {
	c := New(8, NewInProcess(), syncBackground{})
	policy := Policies[ClassAggregated]

	fetch := func() ([]byte, error) { return []byte("payload"), nil }
	if _, err := c.Lookup("k", policy, fetch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var calls int64
	fetchAgain := func() ([]byte, error) {
		atomic.AddInt64(&calls, 1)
		return []byte("payload2"), nil
	}
	res, err := c.Lookup("k", policy, fetchAgain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != SourceEdge || res.Stale {
		t.Fatalf("unexpected result: %+v", res)
	}
	if atomic.LoadInt64(&calls) != 0 {
		t.Fatal("expected no fetch on edge hit")
	}
}

func TestLookup_StaleEdgeHitTriggersRevalidation(t *testing.T) {
	c := New(8, NewInProcess(), syncBackground{})
	policy := Policy{EdgeTTL: 10 * time.Millisecond, SlowTTL: 10 * time.Millisecond, SWRWindow: time.Minute}

	if _, err := c.Lookup("k", policy, func() ([]byte, error) { return []byte("v1"), nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	var revalidated int64
	res, err := c.Lookup("k", policy, func() ([]byte, error) {
		atomic.AddInt64(&revalidated, 1)
		return []byte("v2"), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Stale {
		t.Fatal("expected stale result")
	}
	if string(res.Payload) != "v1" {
		t.Fatalf("expected stale lookup to return old payload, got %q", res.Payload)
	}
	// syncBackground runs the revalidation inline, so it has already happened.
	if atomic.LoadInt64(&revalidated) != 1 {
		t.Fatalf("expected exactly 1 revalidation fetch, got %d", revalidated)
	}

	got, ok := c.edge.get("k")
	if !ok || string(got.Payload) != "v2" {
		t.Fatalf("expected revalidation to refresh the edge entry, got %+v ok=%v", got, ok)
	}
}

func TestLookup_FetchErrorPropagatesWithoutCaching(t *testing.T) {
	c := New(8, NewInProcess(), syncBackground{})
	policy := Policies[ClassAggregated]
	wantErr := errors.New("upstream down")

	_, err := c.Lookup("k", policy, func() ([]byte, error) { return nil, wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
	if _, ok := c.edge.get("k"); ok {
		t.Fatal("expected failed fetch to leave no cache entry")
	}
}

func TestLookup_SlowTierHitPromotesToEdge(t *testing.T) {
	slow := NewInProcess()
	c := New(8, slow, syncBackground{})
	policy := Policies[ClassAggregated]

	slow.Set("k", Entry{Payload: []byte("from-slow"), CachedAt: time.Now(), TTL: policy.SlowTTL, SWRWindow: policy.SWRWindow})

	res, err := c.Lookup("k", policy, func() ([]byte, error) { return nil, errors.New("should not be called") })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != SourceSlow {
		t.Fatalf("expected slow-tier hit, got %+v", res)
	}

	if _, ok := c.edge.get("k"); !ok {
		t.Fatal("expected slow-tier hit to promote into edge tier")
	}
}
