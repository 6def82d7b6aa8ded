// client.go — the upstream liquidations client: a struct wrapping
// http.Client plus a base URL, one method per upstream operation, every
// call taking a context. The circuit breaker gate and the rate-limit gate
// are each a field composed onto Client rather than a base class.
package upstreamclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/liquidterminal/liq-stream/internal/circuitbreaker"
	"github.com/liquidterminal/liq-stream/internal/cursor"
	"github.com/liquidterminal/liq-stream/internal/events"
	"github.com/liquidterminal/liq-stream/internal/liqerrors"
	"github.com/liquidterminal/liq-stream/internal/logging"
	"github.com/liquidterminal/liq-stream/internal/metrics"
)

// Order is the sort direction requested from the upstream API.
type Order string

const (
	Asc  Order = "ASC"
	Desc Order = "DESC"
)

// Filter narrows a fetchPage call to a coin, user, notional floor, and/or
// explicit time range. Zero values mean "unset".
type Filter struct {
	Coin           string
	User           string
	StartTime      string
	EndTime        string
	AmountDollars  float64
}

// Page is the result of one upstream fetch.
type Page struct {
	Events          []events.Event
	NextCursor      string
	HasMore         bool
	ExecutionTimeMs int64
}

type wireResponse struct {
	Data            []events.Event `json:"data"`
	NextCursor      *string        `json:"next_cursor"`
	HasMore         bool           `json:"has_more"`
	ExecutionTimeMs int64          `json:"execution_time_ms"`
}

// Client is the composed upstream liquidations client: HTTP transport plus
// the circuit breaker and rate limiter gates.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	breaker *circuitbreaker.CircuitBreaker
	limiter *circuitbreaker.Limiter

	requestWeight int
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client (useful for tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New builds a Client. rateLimitPerMin and requestWeight parameterize the
// token-bucket gate.
func New(baseURL, apiKey string, rateLimitPerMin, requestWeight int, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		breaker:       circuitbreaker.New(emitLifecycleEvent),
		limiter:       circuitbreaker.NewLimiter(float64(rateLimitPerMin), rateLimitPerMin),
		requestWeight: requestWeight,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func emitLifecycleEvent(event string, data map[string]any) {
	logging.WithComponent("upstream").Warn().
		Str("event", event).
		Interface("data", data).
		Msg("circuit breaker transition")
}

// logCursorProgress parses a cursor returned by upstream and logs its
// embedded time_ms/tid at debug level, for tracking pagination progress
// without upstream exposing a tid directly. The cursor stays opaque to
// every other caller in this package; a parse failure here is logged and
// otherwise ignored.
func logCursorProgress(raw string) {
	if raw == "" {
		return
	}
	c, err := cursor.Parse(raw)
	if err != nil {
		logging.WithComponent("upstream").Debug().Err(err).Msg("upstream cursor did not match expected shape")
		return
	}
	logging.WithComponent("upstream").Debug().
		Int64("cursor_time_ms", c.TimeMs).
		Int64("cursor_tid", c.TID).
		Msg("pagination cursor advanced")
}

// FetchPage issues GET /liquidations/ with the given filter, cursor, limit,
// and order.
func (c *Client) FetchPage(ctx context.Context, filter Filter, cursor string, limit int, order Order) (Page, error) {
	q := url.Values{}
	if filter.Coin != "" {
		q.Set("coin", filter.Coin)
	}
	if filter.User != "" {
		q.Set("user", filter.User)
	}
	if filter.StartTime != "" {
		q.Set("start_time", filter.StartTime)
	}
	if filter.EndTime != "" {
		q.Set("end_time", filter.EndTime)
	}
	if filter.AmountDollars > 0 {
		q.Set("amount_dollars", strconv.FormatFloat(filter.AmountDollars, 'f', -1, 64))
	}
	return c.fetch(ctx, "/liquidations/", q, cursor, limit, order)
}

// FetchRecentPage issues GET /liquidations/recent, encoding hours as
// start_time = now - hours*3600s.
func (c *Client) FetchRecentPage(ctx context.Context, hours int, cursor string, limit int, order Order) (Page, error) {
	if hours < 1 || hours > 168 {
		return Page{}, liqerrors.ValidationFailed("hours", "must be in [1,168]")
	}
	q := url.Values{}
	start := time.Now().Add(-time.Duration(hours) * time.Hour)
	q.Set("start_time", strconv.FormatInt(start.UnixMilli(), 10))
	return c.fetch(ctx, "/liquidations/recent", q, cursor, limit, order)
}

func (c *Client) fetch(ctx context.Context, path string, q url.Values, cursor string, limit int, order Order) (Page, error) {
	if limit < 1 || limit > 1000 {
		return Page{}, liqerrors.ValidationFailed("limit", "must be in [1,1000]")
	}
	if order != Asc && order != Desc {
		return Page{}, liqerrors.ValidationFailed("order", "must be ASC or DESC")
	}

	if !c.breaker.Allow() {
		metrics.UpstreamRequestsTotal.WithLabelValues("unavailable").Inc()
		return Page{}, liqerrors.UpstreamUnavailable(fmt.Errorf("circuit open"))
	}
	if !c.limiter.Allow(c.apiKey, c.requestWeight) {
		metrics.UpstreamRequestsTotal.WithLabelValues("rate_limited").Inc()
		return Page{}, liqerrors.UpstreamRateLimited("1s")
	}

	if cursor != "" {
		q.Set("cursor", cursor)
	}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("order", string(order))

	u := c.baseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Page{}, liqerrors.Fatal("building upstream request", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		metrics.UpstreamRequestsTotal.WithLabelValues("unavailable").Inc()
		return Page{}, liqerrors.UpstreamUnavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.breaker.RecordFailure()
		metrics.UpstreamRequestsTotal.WithLabelValues("rate_limited").Inc()
		return Page{}, liqerrors.UpstreamRateLimited(resp.Header.Get("Retry-After"))
	}
	if resp.StatusCode >= 500 {
		c.breaker.RecordFailure()
		metrics.UpstreamRequestsTotal.WithLabelValues("unavailable").Inc()
		return Page{}, liqerrors.UpstreamUnavailable(fmt.Errorf("upstream status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		c.breaker.RecordFailure()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		metrics.UpstreamRequestsTotal.WithLabelValues("unavailable").Inc()
		return Page{}, liqerrors.UpstreamUnavailable(fmt.Errorf("upstream status %d: %s", resp.StatusCode, body))
	}

	var wr wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		c.breaker.RecordFailure()
		metrics.UpstreamRequestsTotal.WithLabelValues("unavailable").Inc()
		return Page{}, liqerrors.UpstreamUnavailable(fmt.Errorf("decoding upstream response: %w", err))
	}
	c.breaker.RecordSuccess()
	metrics.UpstreamRequestsTotal.WithLabelValues("ok").Inc()

	next := ""
	if wr.NextCursor != nil {
		next = *wr.NextCursor
		logCursorProgress(next)
	}
	return Page{
		Events:          wr.Data,
		NextCursor:      next,
		HasMore:         wr.HasMore,
		ExecutionTimeMs: wr.ExecutionTimeMs,
	}, nil
}
