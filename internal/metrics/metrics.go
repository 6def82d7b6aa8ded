// metrics.go — Prometheus metrics for the refresh loop, upstream client,
// and subscriber registry: package-level counters and gauges registered
// once via MustRegister, covering refresh passes, pages fetched,
// malformed-event drops, broadcast messages, admission denials, attached
// sessions, and circuit-breaker state.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RefreshPassesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liqstream_refresh_passes_total",
			Help: "Total number of refresh passes by outcome",
		},
		[]string{"outcome"}, // ok, partial, failed, coalesced
	)

	RefreshPagesFetchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "liqstream_refresh_pages_fetched_total",
			Help: "Total number of upstream pages fetched across all refresh passes",
		},
	)

	RefreshMalformedEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "liqstream_refresh_malformed_events_total",
			Help: "Total number of events dropped for failing normalization",
		},
	)

	RefreshWindowSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "liqstream_refresh_window_size",
			Help: "Number of events in the most recently assembled rolling window",
		},
	)

	LastObservedID = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "liqstream_last_observed_id",
			Help: "Most recent last-observed-id marker written by the refresh loop",
		},
	)

	BroadcastMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "liqstream_broadcast_messages_total",
			Help: "Total number of broadcast messages published",
		},
	)

	BroadcastEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "liqstream_broadcast_events_total",
			Help: "Total number of individual events published across all broadcast messages",
		},
	)

	SessionsAttached = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "liqstream_sessions_attached",
			Help: "Number of currently attached streaming sessions in this process",
		},
	)

	AdmissionDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liqstream_admission_denied_total",
			Help: "Total number of denied stream attach attempts by reason",
		},
		[]string{"reason"}, // total_limit, per_ip_limit, not_writable
	)

	SessionsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liqstream_sessions_dropped_total",
			Help: "Total number of sessions dropped by reason",
		},
		[]string{"reason"}, // slow_consumer, shutdown
	)

	CircuitBreakerOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "liqstream_circuit_breaker_open",
			Help: "Whether the upstream circuit breaker is currently open (1) or closed (0)",
		},
	)

	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liqstream_upstream_requests_total",
			Help: "Total number of upstream requests by outcome",
		},
		[]string{"outcome"}, // ok, rate_limited, unavailable
	)
)

func init() {
	prometheus.MustRegister(
		RefreshPassesTotal,
		RefreshPagesFetchedTotal,
		RefreshMalformedEventsTotal,
		RefreshWindowSize,
		LastObservedID,
		BroadcastMessagesTotal,
		BroadcastEventsTotal,
		SessionsAttached,
		AdmissionDeniedTotal,
		SessionsDroppedTotal,
		CircuitBreakerOpen,
		UpstreamRequestsTotal,
	)
}

// Handler returns the Prometheus scrape handler for GET /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
