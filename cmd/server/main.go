package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"universalis-edge-proxy/internal/applog"
	"universalis-edge-proxy/internal/bgwork"
	"universalis-edge-proxy/internal/cache"
	"universalis-edge-proxy/internal/config"
	"universalis-edge-proxy/internal/httpapi"
	"universalis-edge-proxy/internal/metrics"
	"universalis-edge-proxy/internal/ratelimit"
	"universalis-edge-proxy/internal/upstreamclient"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

// version is stamped at build time via -ldflags; left as a default for
// local/dev runs.
var version = "dev"

// knownDatacenters and knownWorlds are the whitelist Universalis publishes
// for its own /data-centers and /worlds endpoints. Kept as a static list so
// path validation never depends on an upstream round trip.
var knownDatacenters = []string{"aether", "crystal", "dynamis", "primal", "chaos", "light", "elemental", "gaia", "mana", "meteor"}

var knownWorlds = []string{
	"brynhildr", "coeurl", "diabolos", "goblin", "malboro", "mateus", "zalera",
	"adamantoise", "cactuar", "faerie", "gilgamesh", "jenova", "midgardsormr", "sargatanas", "siren",
	"balmung", "excalibur", "hyperion", "lamia", "leviathan", "ultros", "zeromus",
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: could not load .env file (%v), using system environment variables", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	applog.Configure(cfg.LokiURL, cfg.LogLevel)

	var slow cache.SlowTier
	if cfg.SlowTierRedisAddr != "" {
		slow = cache.NewRedis(cfg.SlowTierRedisAddr)
		log.Printf("slow tier: redis at %s", cfg.SlowTierRedisAddr)
	} else {
		slow = cache.NewInProcess()
		log.Printf("slow tier: in-process (no SLOW_TIER_REDIS_ADDR configured)")
	}

	bg := bgwork.New(cfg.BackgroundWorkers, cfg.BackgroundQueueSize)

	c := cache.New(4096, slow, bg)
	limiter := ratelimit.New(cfg.RateLimitRequests, cfg.RateLimitWindow)
	upstream := upstreamclient.New(cfg.UniversalisAPIBase)

	router := httpapi.NewRouter(httpapi.Deps{
		Cache:    c,
		Limiter:  limiter,
		Upstream: upstream,
		CORS: httpapi.CORSPolicy{
			AllowedOrigins: cfg.AllowedOrigins,
			Development:    cfg.IsDevelopment(),
		},
		Environment: cfg.Environment,
		Version:     version,
		Datacenters: knownDatacenters,
		Worlds:      knownWorlds,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", router)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: withServerHeader(mux),
	}

	log.Printf("listening on %s, environment=%s, upstream=%s, rate-limit=%d/%s",
		cfg.ListenAddr, cfg.Environment, cfg.UniversalisAPIBase, cfg.RateLimitRequests, cfg.RateLimitWindow)

	if err := runUntilSignal(srv, bg); err != nil {
		log.Fatal(err)
	}
}

// runUntilSignal starts the server and, on SIGINT/SIGTERM, shuts the HTTP
// server and the background work pool down concurrently: draining queued
// cache writes and revalidations must not wait on in-flight connections
// closing, nor vice versa.
func runUntilSignal(srv *http.Server, bg *bgwork.Pool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	g, _ := errgroup.WithContext(shutdownCtx)
	g.Go(func() error { return srv.Shutdown(shutdownCtx) })
	g.Go(func() error { bg.Close(); return nil })
	return g.Wait()
}

func withServerHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "universalis-edge-proxy/"+version)
		next.ServeHTTP(w, r)
	})
}
