// main.go — process entry point: explicit construction and wiring of the
// upstream client, snapshot cache, broadcast bus, subscriber registry, and
// refresh loop once at startup, then three independent long-lived
// goroutines (refresh loop, broadcast subscription, heartbeat timer)
// coordinated by a single context.Context and torn down together on
// SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/liquidterminal/liq-stream/internal/broadcast"
	"github.com/liquidterminal/liq-stream/internal/config"
	"github.com/liquidterminal/liq-stream/internal/httpapi"
	"github.com/liquidterminal/liq-stream/internal/logging"
	"github.com/liquidterminal/liq-stream/internal/refresh"
	"github.com/liquidterminal/liq-stream/internal/registry"
	"github.com/liquidterminal/liq-stream/internal/snapshotcache"
	"github.com/liquidterminal/liq-stream/internal/upstreamclient"
	"github.com/liquidterminal/liq-stream/internal/util"
)

const (
	recentHours = 1
	recentLimit = 100
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "liq-stream: config error: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{Level: logging.InfoLevel, JSONOutput: true})
	log := logging.WithComponent("main")

	cache, err := buildCache(cfg.CacheURL)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize snapshot cache")
		os.Exit(1)
	}
	defer cache.Close()

	upstream := upstreamclient.New(cfg.UpstreamAPIURL, cfg.UpstreamAPIKey, cfg.RateLimitPerMinute, cfg.RequestWeight)
	bus := broadcast.New(cache, snapshotcache.ChannelBroadcast)
	reg := registry.New(registry.Config{
		MaxTotal:        cfg.MaxTotalSessions,
		MaxPerIP:        cfg.MaxPerIPSessions,
		MissedDataLimit: recentLimit,
	})

	loop := refresh.New(upstream, cache, bus, refresh.Config{
		RefreshInterval: cfg.RefreshInterval,
		InitialGap:      cfg.InitialRefreshGap,
		CacheTTL:        cfg.RefreshInterval * 3,
		RecentHours:     recentHours,
		RecentLimit:     recentLimit,
	})

	ctx, cancel := context.WithCancel(context.Background())

	util.SafeGo(func() { loop.Run(ctx) })

	unsubscribe, err := bus.Subscribe(ctx, func(msg broadcast.Message) {
		reg.BroadcastLocal(msg.Events)
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to subscribe to broadcast channel")
		cancel()
		os.Exit(1)
	}

	util.SafeGo(func() { runHeartbeat(ctx, reg, cfg.HeartbeatInterval) })

	mux := httpapi.NewMux(&httpapi.Server{
		Cache:       cache,
		Registry:    reg,
		Upstream:    upstream,
		Refresh:     loop,
		RecentHours: recentHours,
		RecentLimit: recentLimit,
	})

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	util.SafeGo(func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("liq-stream listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
		}
	})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	cancel()
	unsubscribe()
	reg.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
		os.Exit(1)
	}

	os.Exit(0)
}

// buildCache selects the Cache implementation from the CACHE_URL scheme:
// "memory://" for single-instance deployments, "redis://..." for a
// multi-instance topology sharing state through Redis.
func buildCache(cacheURL string) (snapshotcache.Cache, error) {
	if cacheURL == "" || cacheURL == "memory://" {
		return snapshotcache.NewMemory(), nil
	}
	return snapshotcache.NewRedis(cacheURL)
}

// runHeartbeat drives the registry's heartbeat timer independently of the
// refresh loop, so a stalled upstream poll never delays keepalives to
// already-attached sessions.
func runHeartbeat(ctx context.Context, reg *registry.Registry, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reg.HeartbeatTick()
		}
	}
}
