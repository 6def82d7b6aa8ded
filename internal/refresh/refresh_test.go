package refresh

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/liquidterminal/liq-stream/internal/broadcast"
	"github.com/liquidterminal/liq-stream/internal/logging"
	"github.com/liquidterminal/liq-stream/internal/snapshotcache"
	"github.com/liquidterminal/liq-stream/internal/upstreamclient"
)

type wireEvent struct {
	TID      int64   `json:"tid"`
	Time     string  `json:"time"`
	Coin     string  `json:"coin"`
	Dir      string  `json:"dir"`
	Notional float64 `json:"notional"`
}

type wireResp struct {
	Data            []wireEvent `json:"data"`
	NextCursor      *string     `json:"next_cursor"`
	HasMore         bool        `json:"has_more"`
	ExecutionTimeMs int64       `json:"execution_time_ms"`
}

func singlePageServer(t *testing.T, evs []wireEvent) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(wireResp{Data: evs, HasMore: false})
	}))
}

func testLoop(t *testing.T, srv *httptest.Server) (*Loop, snapshotcache.Cache) {
	t.Helper()
	client := upstreamclient.New(srv.URL, "", 600, 1)
	cache := snapshotcache.NewMemory()
	bus := broadcast.New(cache, "")
	loop := New(client, cache, bus, Config{
		RefreshInterval: time.Minute,
		InitialGap:      0,
		CacheTTL:        time.Minute,
		RecentHours:     1,
		RecentLimit:     100,
	})
	return loop, cache
}

func TestRunOnceWritesDerivedBlobsAndAdvancesMarker(t *testing.T) {
	now := time.Now()
	evs := []wireEvent{
		{TID: 1, Time: now.Add(-10 * time.Minute).Format(time.RFC3339), Coin: "BTC", Dir: "Long", Notional: 1000},
		{TID: 2, Time: now.Add(-5 * time.Minute).Format(time.RFC3339), Coin: "ETH", Dir: "Short", Notional: 500},
	}
	srv := singlePageServer(t, evs)
	defer srv.Close()

	loop, cache := testLoop(t, srv)
	ctx := context.Background()

	require.NoError(t, loop.RunOnce(ctx))

	_, ok, _ := cache.Get(ctx, snapshotcache.KeyAllData)
	require.True(t, ok, "expected all-data key to be written")

	_, ok, _ = cache.Get(ctx, snapshotcache.KeyStatsAll)
	require.True(t, ok, "expected stats-all key to be written")

	markerBytes, ok, _ := cache.Get(ctx, snapshotcache.KeyLastTime)
	require.True(t, ok, "expected last-observed marker to be written")
	var marker int64
	require.NoError(t, json.Unmarshal(markerBytes, &marker))
	require.EqualValues(t, 2, marker)
}

func TestRunOnceBroadcastsOnlyEventsNewerThanMarker(t *testing.T) {
	now := time.Now()
	evs := []wireEvent{
		{TID: 5, Time: now.Add(-1 * time.Minute).Format(time.RFC3339), Coin: "BTC", Dir: "Long", Notional: 10},
	}
	srv := singlePageServer(t, evs)
	defer srv.Close()

	loop, cache := testLoop(t, srv)
	ctx := context.Background()

	marker, _ := json.Marshal(int64(5))
	require.NoError(t, cache.Set(ctx, snapshotcache.KeyLastTime, marker, 0))

	received := make(chan broadcast.Message, 1)
	bus := broadcast.New(cache, "")
	unsub, err := bus.Subscribe(ctx, func(m broadcast.Message) { received <- m })
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, loop.RunOnce(ctx))

	select {
	case <-received:
		t.Fatalf("should not broadcast when tid == marker (no new events)")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRunOnceSkipsCycleOnTotalUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	loop, cache := testLoop(t, srv)
	ctx := context.Background()

	require.Error(t, loop.RunOnce(ctx))
	_, ok, _ := cache.Get(ctx, snapshotcache.KeyAllData)
	require.False(t, ok, "cache should remain empty after total failure")
}

func TestTickCoalescesOverlappingTicks(t *testing.T) {
	srv := singlePageServer(t, nil)
	defer srv.Close()
	loop, _ := testLoop(t, srv)

	loop.mu.Lock()
	loop.refreshing = true
	loop.mu.Unlock()

	loop.tick(context.Background(), logging.WithComponent("test"))

	passes, _ := loop.Stats()
	require.EqualValues(t, 0, passes, "tick should have coalesced")
}
