package upstreamclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"universalis-edge-proxy/internal/httpapi/apierror"
	"universalis-edge-proxy/internal/upstreamclient"
)

func newClient(t *testing.T, h http.HandlerFunc) *upstreamclient.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	base, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("bad url: %v", err)
	}
	return upstreamclient.New(base)
}

func TestGetJSON_SuccessReturnsBody(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("want Accept application/json, got %q", got)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a User-Agent header")
		}
		w.Write([]byte(`{"ok":true}`))
	})

	body, err := c.GetJSON(context.Background(), "/api/v2/worlds")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Fatalf("got %q", body)
	}
}

func TestGetJSON_429MapsToUpstreamRateLimited(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.GetJSON(context.Background(), "/x")
	var apiErr *apierror.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected apierror.Error, got %v", err)
	}
	if apiErr.Kind != apierror.UpstreamRateLimited {
		t.Fatalf("want UpstreamRateLimited, got %s", apiErr.Kind)
	}
	if apiErr.RetryAfter != 60 {
		t.Fatalf("want RetryAfter 60, got %d", apiErr.RetryAfter)
	}
}

func TestGetJSON_NonRateLimitNon2xxMapsToUpstreamStatus(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.GetJSON(context.Background(), "/x")
	var apiErr *apierror.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected apierror.Error, got %v", err)
	}
	if apiErr.Kind != apierror.UpstreamStatus || apiErr.UpstreamStatus != 404 {
		t.Fatalf("got %+v", apiErr)
	}
}

func TestGetJSON_TransportFailureMapsToUpstreamTransport(t *testing.T) {
	base, _ := url.Parse("http://127.0.0.1:1") // nothing listens here
	c := upstreamclient.New(base)

	_, err := c.GetJSON(context.Background(), "/x")
	var apiErr *apierror.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected apierror.Error, got %v", err)
	}
	if apiErr.Kind != apierror.UpstreamTransport {
		t.Fatalf("want UpstreamTransport, got %s", apiErr.Kind)
	}
}
