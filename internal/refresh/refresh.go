// refresh.go — the refresh loop: the single writer that drains the
// rolling window from the upstream client, builds derived views, and
// drives the broadcast bus. State machine Idle/Refreshing with a
// coalescing guard so overlapping ticks never run concurrent passes.
package refresh

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/liquidterminal/liq-stream/internal/broadcast"
	"github.com/liquidterminal/liq-stream/internal/events"
	"github.com/liquidterminal/liq-stream/internal/logging"
	"github.com/liquidterminal/liq-stream/internal/metrics"
	"github.com/liquidterminal/liq-stream/internal/snapshotcache"
	"github.com/liquidterminal/liq-stream/internal/upstreamclient"
	"github.com/liquidterminal/liq-stream/internal/views"
	"github.com/liquidterminal/liq-stream/internal/window"
	"github.com/rs/zerolog"
)

// PMax bounds how many pages a single refresh pass will fetch.
const PMax = 5

// InterPageDelay is the pause between successive page fetches, yielding
// to the upstream rate limiter.
const InterPageDelay = 400 * time.Millisecond

// Config parameterizes one Loop instance.
type Config struct {
	RefreshInterval   time.Duration
	InitialGap        time.Duration
	CacheTTL          time.Duration
	RecentHours       int
	RecentLimit       int
	MaxWindowEvents   int
}

// Loop is the single-writer refresh coordinator.
type Loop struct {
	mu         sync.Mutex
	refreshing bool

	upstream *upstreamclient.Client
	cache    snapshotcache.Cache
	bus      *broadcast.Bus
	cfg      Config

	passes     int64
	malformed  int64
}

// New builds a Loop.
func New(upstream *upstreamclient.Client, cache snapshotcache.Cache, bus *broadcast.Bus, cfg Config) *Loop {
	if cfg.MaxWindowEvents <= 0 {
		cfg.MaxWindowEvents = window.MaxEvents
	}
	if cfg.RecentHours <= 0 {
		cfg.RecentHours = 1
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 100
	}
	return &Loop{upstream: upstream, cache: cache, bus: bus, cfg: cfg}
}

// Run starts the timer-driven loop: an initial tick after InitialGap, then
// one tick every RefreshInterval, until ctx is canceled.
func (l *Loop) Run(ctx context.Context) {
	log := logging.WithComponent("refresh")

	select {
	case <-time.After(l.cfg.InitialGap):
	case <-ctx.Done():
		return
	}
	l.tick(ctx, log)

	ticker := time.NewTicker(l.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx, log)
		}
	}
}

func (l *Loop) tick(ctx context.Context, log zerolog.Logger) {
	l.mu.Lock()
	if l.refreshing {
		l.mu.Unlock()
		metrics.RefreshPassesTotal.WithLabelValues("coalesced").Inc()
		log.Info().Msg("refresh tick coalesced, pass already in progress")
		return
	}
	l.refreshing = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.refreshing = false
		l.mu.Unlock()
	}()

	if err := l.RunOnce(ctx); err != nil {
		log.Warn().Err(err).Msg("refresh pass failed")
	}
}

// RunOnce executes a single refresh pass: drain the window, normalize
// events, compute the new-events delta, build derived views, and publish.
// Exported so callers (tests, manual triggers) can drive a pass directly
// without going through the timer.
func (l *Loop) RunOnce(ctx context.Context) error {
	log := logging.WithComponent("refresh")

	markerBytes, ok, err := l.cache.Get(ctx, snapshotcache.KeyLastTime)
	var lastObservedID int64
	if err == nil && ok {
		_ = json.Unmarshal(markerBytes, &lastObservedID)
	}

	pages, partial, fetchErr := l.drainWindow(ctx)
	if fetchErr != nil && len(pages) == 0 {
		l.passes++
		metrics.RefreshPassesTotal.WithLabelValues("failed").Inc()
		return fetchErr
	}

	now := time.Now()
	cutoffMs := now.Add(-24 * time.Hour).UnixMilli()
	w := window.Assemble(pages, cutoffMs, l.cfg.MaxWindowEvents)
	metrics.RefreshWindowSize.Set(float64(w.Len()))

	delta := w.Since(lastObservedID)

	allPeriods := views.BuildAll(w.Events, now)
	if err := l.publishViews(ctx, allPeriods, w); err != nil {
		log.Warn().Err(err).Msg("writing derived views to cache failed")
	}

	if len(delta) > 0 {
		if err := l.bus.Publish(ctx, delta); err != nil {
			log.Warn().Err(err).Msg("publishing broadcast message failed")
		} else {
			metrics.BroadcastMessagesTotal.Inc()
			metrics.BroadcastEventsTotal.Add(float64(len(delta)))
		}
		newMarker := w.MaxTID()
		if newMarker > lastObservedID {
			markerJSON, _ := json.Marshal(newMarker)
			_ = l.cache.Set(ctx, snapshotcache.KeyLastTime, markerJSON, 0)
			metrics.LastObservedID.Set(float64(newMarker))
		}
	}

	l.passes++
	if partial {
		metrics.RefreshPassesTotal.WithLabelValues("partial").Inc()
		log.Warn().Err(fetchErr).Msg("refresh pass completed over a partial window")
	} else {
		metrics.RefreshPassesTotal.WithLabelValues("ok").Inc()
	}
	return nil
}

// drainWindow pages through fetchRecentPage(24h) up to PMax pages,
// sleeping InterPageDelay between pages. Returns the pages fetched so far
// and whether the pass ended early due to an error (partial=true) rather
// than hasMore=false.
func (l *Loop) drainWindow(ctx context.Context) (pages [][]events.Event, partial bool, err error) {
	var cursor string
	for page := 0; page < PMax; page++ {
		p, fetchErr := l.upstream.FetchRecentPage(ctx, 24, cursor, 1000, upstreamclient.Desc)
		if fetchErr != nil {
			return pages, page > 0, fetchErr
		}

		metrics.RefreshPagesFetchedTotal.Inc()
		normalized := make([]events.Event, 0, len(p.Events))
		for _, e := range p.Events {
			ev := e
			if err := ev.Normalize(); err != nil {
				l.malformed++
				metrics.RefreshMalformedEventsTotal.Inc()
				continue
			}
			normalized = append(normalized, ev)
		}
		pages = append(pages, normalized)

		if !p.HasMore {
			break
		}
		cursor = p.NextCursor

		select {
		case <-time.After(InterPageDelay):
		case <-ctx.Done():
			return pages, true, ctx.Err()
		}
	}
	return pages, false, nil
}

func (l *Loop) publishViews(ctx context.Context, all views.AllPeriods, w window.Window) error {
	ttl := l.cfg.CacheTTL
	if ttl <= 0 {
		ttl = l.cfg.RefreshInterval * 3
	}

	allJSON, err := json.Marshal(all)
	if err != nil {
		return err
	}
	if err := l.cache.Set(ctx, snapshotcache.KeyAllData, allJSON, ttl); err != nil {
		return err
	}

	statsOnly := make(map[string]views.Stats, len(all))
	for name, pv := range all {
		statsOnly[name] = pv.Stats
	}
	statsJSON, err := json.Marshal(statsOnly)
	if err != nil {
		return err
	}
	if err := l.cache.Set(ctx, snapshotcache.KeyStatsAll, statsJSON, ttl); err != nil {
		return err
	}

	for name, pv := range all {
		chartJSON, err := json.Marshal(pv.Chart)
		if err != nil {
			continue
		}
		_ = l.cache.Set(ctx, snapshotcache.KeyChart(name), chartJSON, ttl)
	}

	recentStart := time.Now().Add(-time.Duration(l.cfg.RecentHours) * time.Hour).UnixMilli()
	recent := w.SincePeriod(recentStart)
	sort.Slice(recent, func(i, j int) bool { return recent[i].TID > recent[j].TID })
	if len(recent) > l.cfg.RecentLimit {
		recent = recent[:l.cfg.RecentLimit]
	}
	recentJSON, err := json.Marshal(recent)
	if err == nil {
		recentTTL := ttl
		if recentTTL > 180*time.Second {
			recentTTL = 180 * time.Second
		}
		_ = l.cache.Set(ctx, snapshotcache.KeyRecent(l.cfg.RecentHours, l.cfg.RecentLimit), recentJSON, recentTTL)
	}

	return nil
}

// Stats reports pass counters for observability endpoints.
func (l *Loop) Stats() (passes int64, malformed int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.passes, l.malformed
}
