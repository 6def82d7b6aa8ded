// server.go — the HTTP API: a plain net/http.ServeMux with a handler
// struct holding every read-only dependency (cache, registry, upstream
// client, refresh loop). No framework, no per-request state beyond what
// net/http already gives us.
package httpapi

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/liquidterminal/liq-stream/internal/metrics"
	"github.com/liquidterminal/liq-stream/internal/refresh"
	"github.com/liquidterminal/liq-stream/internal/registry"
	"github.com/liquidterminal/liq-stream/internal/snapshotcache"
	"github.com/liquidterminal/liq-stream/internal/upstreamclient"
)

// Server holds every dependency the handlers read from. It owns no
// mutable state of its own — the registry and cache are the only
// mutators.
type Server struct {
	Cache      snapshotcache.Cache
	Registry   *registry.Registry
	Upstream   *upstreamclient.Client
	Refresh    *refresh.Loop
	RecentHours int
	RecentLimit int
}

// NewMux builds the routed http.Handler for the service.
func NewMux(s *Server) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/liquidations", withCORS(s.handleLiquidations))
	mux.HandleFunc("/liquidations/recent", withCORS(s.handleRecent))
	mux.HandleFunc("/liquidations/stats/all", withCORS(s.handleStatsAll))
	mux.HandleFunc("/liquidations/chart-data", withCORS(s.handleChartData))
	mux.HandleFunc("/liquidations/data", withCORS(s.handleData))
	mux.HandleFunc("/liquidations/stream", withCORS(s.handleStream))
	mux.HandleFunc("/liquidations/stream/stats", withCORS(s.handleStreamStats))

	mux.HandleFunc("/health", withCORS(s.handleHealth))
	mux.Handle("/metrics", metrics.Handler())

	return mux
}

// withCORS is a thin decorator applied at route-registration time rather
// than a global middleware chain.
func withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Last-Event-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	passes, malformed := int64(0), int64(0)
	if s.Refresh != nil {
		passes, malformed = s.Refresh.Stats()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"refreshPasses":    passes,
		"malformedDropped": malformed,
		"time":             time.Now().UTC(),
	})
}

// clientIP extracts the caller's address for admission accounting:
// X-Forwarded-For first, then X-Real-IP, then RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
