// liquidations.go — the read endpoints: pass-through historical
// pagination, the cached "recent" blob, and the three cache-as-truth
// composite endpoints (stats/all, chart-data, data). One method per
// route, each doing its own query parsing and dependency call rather
// than routing through a generic RPC dispatcher.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/liquidterminal/liq-stream/internal/events"
	"github.com/liquidterminal/liq-stream/internal/liqerrors"
	"github.com/liquidterminal/liq-stream/internal/snapshotcache"
	"github.com/liquidterminal/liq-stream/internal/upstreamclient"
	"github.com/liquidterminal/liq-stream/internal/views"
)

const (
	defaultPageLimit   = 100
	defaultRecentHours = 2
)

// handleLiquidations proxies GET /liquidations straight through to the
// upstream historical endpoint; there is no named composite cache key for
// arbitrary-filtered historical pagination, so this endpoint is not
// cache-as-truth like the composite blobs below.
func (s *Server) handleLiquidations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()

	limit, err := parseLimit(q.Get("limit"), defaultPageLimit)
	if err != nil {
		writeValidationError(w, "limit", err.Error())
		return
	}
	order, err := parseOrder(q.Get("order"))
	if err != nil {
		writeValidationError(w, "order", err.Error())
		return
	}
	amount, err := parseFloat(q.Get("amount_dollars"))
	if err != nil {
		writeValidationError(w, "amount_dollars", err.Error())
		return
	}

	filter := upstreamclient.Filter{
		Coin:          q.Get("coin"),
		User:          q.Get("user"),
		StartTime:     q.Get("start_time"),
		EndTime:       q.Get("end_time"),
		AmountDollars: amount,
	}

	page, err := s.Upstream.FetchPage(r.Context(), filter, q.Get("cursor"), limit, order)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":            page.Events,
		"next_cursor":     nullableCursor(page.NextCursor),
		"has_more":        page.HasMore,
		"execution_time_ms": page.ExecutionTimeMs,
	})
}

// handleRecent serves GET /liquidations/recent. The exact default query
// (no coin/user/cursor, hours/limit matching the refresh loop's
// configured recent blob) is cache-as-truth; any other combination falls
// back to a direct upstream call, since the cache only holds that one
// default shape.
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()

	hours, err := parseHours(q.Get("hours"), defaultRecentHours)
	if err != nil {
		writeValidationError(w, "hours", err.Error())
		return
	}
	limit, err := parseLimit(q.Get("limit"), defaultPageLimit)
	if err != nil {
		writeValidationError(w, "limit", err.Error())
		return
	}
	order, err := parseOrder(q.Get("order"))
	if err != nil {
		writeValidationError(w, "order", err.Error())
		return
	}
	coin, user, cursor := q.Get("coin"), q.Get("user"), q.Get("cursor")

	if coin == "" && user == "" && cursor == "" && hours == s.RecentHours && limit == s.RecentLimit {
		if raw, ok, err := s.Cache.Get(r.Context(), snapshotcache.KeyRecent(hours, limit)); err == nil && ok {
			var evs []events.Event
			if json.Unmarshal(raw, &evs) == nil {
				writeJSON(w, http.StatusOK, map[string]any{"data": evs, "next_cursor": nil, "has_more": false})
				return
			}
		}
	}

	page, err := s.Upstream.FetchRecentPage(r.Context(), hours, cursor, limit, order)
	if err != nil {
		writeError(w, err)
		return
	}
	filtered := page.Events
	if coin != "" || user != "" {
		filtered = make([]events.Event, 0, len(page.Events))
		for _, e := range page.Events {
			if coin != "" && !e.CoinEquals(coin) {
				continue
			}
			if user != "" && !e.LiquidatedEquals(user) {
				continue
			}
			filtered = append(filtered, e)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":            filtered,
		"next_cursor":     nullableCursor(page.NextCursor),
		"has_more":        page.HasMore,
		"execution_time_ms": page.ExecutionTimeMs,
	})
}

// handleStatsAll serves GET /liquidations/stats/all: the composite stats
// blob, cache-as-truth with no upstream fallback.
func (s *Server) handleStatsAll(w http.ResponseWriter, r *http.Request) {
	raw, ok, err := s.Cache.Get(r.Context(), snapshotcache.KeyStatsAll)
	if err != nil {
		writeError(w, liqerrors.TransientCache(err))
		return
	}
	if !ok {
		writeError(w, liqerrors.UpstreamUnavailable(nil))
		return
	}
	var stats map[string]views.Stats
	if err := json.Unmarshal(raw, &stats); err != nil {
		writeError(w, liqerrors.TransientCache(err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleChartData serves GET /liquidations/chart-data?period=.
func (s *Server) handleChartData(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if !isValidPeriod(period) {
		writeValidationError(w, "period", "must be one of 2h,4h,8h,12h,24h")
		return
	}

	raw, ok, err := s.Cache.Get(r.Context(), snapshotcache.KeyChart(period))
	if err != nil {
		writeError(w, liqerrors.TransientCache(err))
		return
	}
	if !ok {
		writeError(w, liqerrors.UpstreamUnavailable(nil))
		return
	}
	var chart views.Chart
	if err := json.Unmarshal(raw, &chart); err != nil {
		writeError(w, liqerrors.TransientCache(err))
		return
	}
	writeJSON(w, http.StatusOK, chart)
}

// handleData serves GET /liquidations/data: the full composite
// {periods: {h: {stats, chart}}} blob.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	raw, ok, err := s.Cache.Get(r.Context(), snapshotcache.KeyAllData)
	if err != nil {
		writeError(w, liqerrors.TransientCache(err))
		return
	}
	if !ok {
		writeError(w, liqerrors.UpstreamUnavailable(nil))
		return
	}
	var all views.AllPeriods
	if err := json.Unmarshal(raw, &all); err != nil {
		writeError(w, liqerrors.TransientCache(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"periods": all})
}

func isValidPeriod(p string) bool {
	for _, cfg := range views.Periods {
		if cfg.Name == p {
			return true
		}
	}
	return false
}

func nullableCursor(c string) *string {
	if c == "" {
		return nil
	}
	return &c
}

func parseLimit(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errInvalidInt
	}
	if n < 1 || n > 1000 {
		return 0, errOutOfRange
	}
	return n, nil
}

func parseHours(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errInvalidInt
	}
	if n < 1 || n > 168 {
		return 0, errOutOfRange
	}
	return n, nil
}

func parseOrder(s string) (upstreamclient.Order, error) {
	switch s {
	case "", string(upstreamclient.Desc):
		return upstreamclient.Desc, nil
	case string(upstreamclient.Asc):
		return upstreamclient.Asc, nil
	default:
		return "", errInvalidOrder
	}
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errInvalidFloat
	}
	return f, nil
}
