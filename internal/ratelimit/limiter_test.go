package ratelimit_test

import (
	"testing"
	"time"

	"universalis-edge-proxy/internal/ratelimit"
)

func TestCheck_AllowsUpToLimit(t *testing.T) {
	l := ratelimit.New(3, time.Minute)

	for i := 0; i < 3; i++ {
		d := l.Check("client-a")
		if !d.Allowed {
			t.Fatalf("request %d: expected allowed", i)
		}
	}

	d := l.Check("client-a")
	if d.Allowed {
		t.Fatal("4th request should be denied")
	}
	if d.Remaining != 0 {
		t.Fatalf("expected 0 remaining on denial, got %d", d.Remaining)
	}
	if d.ResetIn < 1 {
		t.Fatalf("expected positive ResetIn, got %d", d.ResetIn)
	}
}

func TestCheck_IdentifiersAreIndependent(t *testing.T) {
	l := ratelimit.New(1, time.Minute)

	if d := l.Check("a"); !d.Allowed {
		t.Fatal("first request for a should be allowed")
	}
	if d := l.Check("b"); !d.Allowed {
		t.Fatal("first request for b should be allowed, independent ledger")
	}
	if d := l.Check("a"); d.Allowed {
		t.Fatal("second request for a should be denied")
	}
}

func TestCheck_WindowSlidesAsEntriesExpire(t *testing.T) {
	l := ratelimit.New(1, 30*time.Millisecond)

	if d := l.Check("client"); !d.Allowed {
		t.Fatal("expected first request allowed")
	}
	if d := l.Check("client"); d.Allowed {
		t.Fatal("expected immediate second request denied")
	}

	time.Sleep(40 * time.Millisecond)

	if d := l.Check("client"); !d.Allowed {
		t.Fatal("expected request allowed once the window has slid past the first entry")
	}
}

func TestCheck_RemainingDecrementsWithinWindow(t *testing.T) {
	l := ratelimit.New(5, time.Minute)

	d := l.Check("client")
	if d.Remaining != 4 {
		t.Fatalf("want remaining 4 after first admission, got %d", d.Remaining)
	}
	d = l.Check("client")
	if d.Remaining != 3 {
		t.Fatalf("want remaining 3 after second admission, got %d", d.Remaining)
	}
}
