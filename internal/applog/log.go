// Package applog provides the structured request logging used by the edge
// proxy: a local line printed through the standard logger, plus an optional
// fire-and-forget push of the same line to Loki when LOKI_URL is configured.
package applog

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	lokiClient = &http.Client{Timeout: 200 * time.Millisecond}

	mu       sync.RWMutex
	lokiURL  string
	minLevel = levelInfo
)

type level int

const (
	levelDebug level = iota
	levelInfo
	levelError
)

func parseLevel(s string) level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return levelDebug
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// Configure sets the Loki push target and minimum enabled level. Call once
// during startup from the resolved config; safe to call again in tests.
func Configure(lokiPushURL, logLevel string) {
	mu.Lock()
	defer mu.Unlock()
	lokiURL = strings.TrimSpace(lokiPushURL)
	if lokiURL != "" && !strings.Contains(lokiURL, "/loki/api/v1/push") {
		lokiURL = strings.TrimRight(lokiURL, "/") + "/loki/api/v1/push"
	}
	minLevel = parseLevel(logLevel)
}

func enabled(lvl level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return lvl >= minLevel
}

func currentLokiURL() string {
	mu.RLock()
	defer mu.RUnlock()
	return lokiURL
}

// Emit prints a line locally (if the level is enabled) and pushes it to Loki.
func Emit(lvl string, app string, labels map[string]string, line string) {
	l := parseLevel(lvl)
	if enabled(l) && logEnabled() {
		log.Print(line)
	}
	pushLoki(l, app, labels, line)
}

func pushLoki(lvl level, app string, labels map[string]string, line string) {
	target := currentLokiURL()
	if target == "" || !enabled(lvl) {
		return
	}

	lbls := map[string]string{
		"app":   app,
		"level": levelName(lvl),
	}
	for k, v := range labels {
		if strings.TrimSpace(k) == "" {
			continue
		}
		lbls[k] = v
	}

	ts := strconv.FormatInt(time.Now().UnixNano(), 10)
	payload := struct {
		Streams []struct {
			Stream map[string]string `json:"stream"`
			Values [][2]string       `json:"values"`
		} `json:"streams"`
	}{
		Streams: []struct {
			Stream map[string]string `json:"stream"`
			Values [][2]string       `json:"values"`
		}{
			{Stream: lbls, Values: [][2]string{{ts, line}}},
		},
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	req, err := http.NewRequest(http.MethodPost, target, bytes.NewReader(b))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	_, _ = lokiClient.Do(req) // fire-and-forget; failures are not user-visible
}

func levelName(l level) string {
	switch l {
	case levelDebug:
		return "debug"
	case levelError:
		return "error"
	default:
		return "info"
	}
}

// logEnabled suppresses local stdout logging inside test binaries.
func logEnabled() bool {
	if flag.Lookup("test.v") != nil || flag.Lookup("test.run") != nil {
		return false
	}
	return true
}

// MustHostname returns the current hostname or "unknown" on error.
func MustHostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "unknown"
	}
	return h
}

// NewRequestID returns a fresh request identifier.
func NewRequestID() string {
	return uuid.NewString()
}

// LogRequest logs an incoming request when its routed handler begins.
func LogRequest(r *http.Request, requestID string) {
	labels := map[string]string{
		"method":     r.Method,
		"host":       MustHostname(),
		"request_id": requestID,
		"url":        r.URL.RequestURI(),
	}
	line := fmt.Sprintf("REQ method=%s url=%s remote=%s req_id=%s", r.Method, r.URL.RequestURI(), r.RemoteAddr, requestID)
	Emit("info", "edgeproxy", labels, line)
}

// LogResponse logs a completed response with cache/rate-limit context.
func LogResponse(r *http.Request, requestID string, status int, cacheSource string, cacheHit bool, dur time.Duration) {
	cacheOutcome := "MISS"
	if cacheHit {
		cacheOutcome = "HIT"
	}
	labels := map[string]string{
		"method":     r.Method,
		"status":     strconv.Itoa(status),
		"cache":      cacheOutcome,
		"source":     cacheSource,
		"host":       MustHostname(),
		"request_id": requestID,
		"url":        r.URL.RequestURI(),
	}
	line := fmt.Sprintf("RESP status=%d method=%s url=%s cache=%s source=%s dur=%s req_id=%s",
		status, r.Method, r.URL.RequestURI(), cacheOutcome, cacheSource, dur, requestID)
	Emit("info", "edgeproxy", labels, line)
}

// LogError logs a server-side failure (upstream transport errors, panics
// recovered at the top level, etc). Never user-visible beyond the mapped
// status code.
func LogError(r *http.Request, requestID string, status int, err error) {
	labels := map[string]string{
		"method":     r.Method,
		"status":     strconv.Itoa(status),
		"host":       MustHostname(),
		"request_id": requestID,
		"url":        r.URL.RequestURI(),
	}
	line := fmt.Sprintf("ERROR status=%d method=%s url=%s err=%v req_id=%s", status, r.Method, r.URL.RequestURI(), err, requestID)
	Emit("error", "edgeproxy", labels, line)
}
