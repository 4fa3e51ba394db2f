// Package upstreamclient talks to the Universalis market-price API on
// behalf of cache misses and background revalidations. Its transport is
// cloned from the teacher's own reverse-proxy transport construction:
// generous idle-connection reuse tuned for a single, trusted upstream.
package upstreamclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"universalis-edge-proxy/internal/httpapi/apierror"
	"universalis-edge-proxy/internal/metrics"
)

const userAgent = "universalis-edge-proxy/1.0 (+reverse-proxy cache layer)"

// Client issues GET requests against the configured Universalis base URL.
type Client struct {
	base *url.URL
	http *http.Client
}

// New constructs a Client targeting base.
func New(base *url.URL) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &Client{
		base: base,
		http: &http.Client{
			Transport: transport,
			Timeout:   15 * time.Second,
		},
	}
}

// GetJSON issues a GET to path (joined against the configured base) and
// returns the raw response body on any 2xx status. Non-2xx and transport
// failures are mapped to the error taxonomy in apierror.
func (c *Client) GetJSON(ctx context.Context, path string) ([]byte, error) {
	u := *c.base
	u.Path = joinPath(u.Path, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, apierror.New(apierror.UpstreamTransport, fmt.Sprintf("failed to build upstream request: %v", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	dur := time.Since(start)
	if err != nil {
		metrics.ObserveUpstreamRequest("transport_error", dur)
		return nil, apierror.New(apierror.UpstreamTransport, "failed to fetch")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		metrics.ObserveUpstreamRequest("read_error", dur)
		return nil, apierror.New(apierror.UpstreamTransport, "failed to fetch")
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		metrics.ObserveUpstreamRequest("429", dur)
		return nil, apierror.NewUpstreamRateLimited()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.ObserveUpstreamRequest(fmt.Sprintf("%d", resp.StatusCode), dur)
		return nil, apierror.NewUpstreamStatus(resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	metrics.ObserveUpstreamRequest("200", dur)
	return body, nil
}

func joinPath(base, extra string) string {
	if base == "" {
		return extra
	}
	if base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	if extra == "" {
		return base
	}
	if extra[0] != '/' {
		extra = "/" + extra
	}
	return base + extra
}
