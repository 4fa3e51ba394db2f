package applog

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConfigure_NormalizesLokiPushPath(t *testing.T) {
	Configure("http://loki.internal:3100", "info")
	if got := currentLokiURL(); got != "http://loki.internal:3100/loki/api/v1/push" {
		t.Fatalf("got %q", got)
	}
	Configure("", "info")
}

func TestEnabled_RespectsConfiguredLevel(t *testing.T) {
	Configure("", "error")
	if enabled(levelInfo) {
		t.Fatal("info should be disabled when minLevel is error")
	}
	if !enabled(levelError) {
		t.Fatal("error should be enabled when minLevel is error")
	}
	Configure("", "info")
}

func TestNewRequestID_ReturnsNonEmptyUniqueValues(t *testing.T) {
	a := NewRequestID()
	b := NewRequestID()
	if a == "" || b == "" {
		t.Fatal("expected non-empty request ids")
	}
	if a == b {
		t.Fatal("expected unique request ids")
	}
}

func TestLogRequestResponseError_DoNotPanic(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/v2/worlds", nil)
	id := NewRequestID()

	LogRequest(r, id)
	LogResponse(r, id, 200, "edge", true, 0)
	LogError(r, id, 500, errBoom)
}

var errBoom = errTest("boom")

type errTest string

func (e errTest) Error() string { return string(e) }
