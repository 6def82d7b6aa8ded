package views

import (
	"testing"
	"time"

	"github.com/liquidterminal/liq-stream/internal/events"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("time.Parse(%q) error = %v", s, err)
	}
	return tm
}

func TestBuildAllEmptyWindowProducesZeroStatsAndStableBucketCounts(t *testing.T) {
	now := mustTime(t, "2026-01-01T00:00:00Z")
	all := BuildAll(nil, now)

	wantBucketCounts := map[string]int{"2h": 24, "4h": 48, "8h": 32, "12h": 48, "24h": 48}
	for name, want := range wantBucketCounts {
		pv, ok := all[name]
		if !ok {
			t.Fatalf("missing period %s", name)
		}
		if len(pv.Chart.Buckets) != want {
			t.Fatalf("period %s bucket count = %d, want %d", name, len(pv.Chart.Buckets), want)
		}
		if pv.Stats.Count != 0 || pv.Stats.TopCoin != "N/A" || pv.Stats.AvgSize != 0 {
			t.Fatalf("period %s stats = %+v, want zero stats", name, pv.Stats)
		}
		for _, b := range pv.Chart.Buckets {
			if b.Count != 0 || b.Volume != 0 {
				t.Fatalf("period %s bucket = %+v, want zero", name, b)
			}
		}
	}
}

func TestBuildSingleLargeLong(t *testing.T) {
	now := mustTime(t, "2026-01-01T00:10:00Z")
	evTime := now.Add(-10 * time.Minute)
	w := []events.Event{{
		TID: 10, TimeMs: evTime.UnixMilli(), Coin: "BTC", Dir: events.DirLong, Notional: 1234567.89,
	}}

	pv := Build(w, now, Periods[0]) // 2h/5m
	s := pv.Stats
	if s.TotalVolume != 1234567.89 || s.Count != 1 || s.LongCount != 1 || s.ShortCount != 0 {
		t.Fatalf("stats = %+v", s)
	}
	if s.TopCoin != "BTC" || s.TopCoinVolume != 1234567.89 {
		t.Fatalf("topCoin = %s/%f", s.TopCoin, s.TopCoinVolume)
	}
	if s.AvgSize != 1234567.89 || s.MaxLiq != 1234567.89 {
		t.Fatalf("avgSize/maxLiq = %f/%f", s.AvgSize, s.MaxLiq)
	}

	// period start = now - 2h = 2025-12-31T22:10:00Z; the event sits at
	// 2026-01-01T00:00:00Z, 110 minutes after start, so with a 5-minute
	// bucket width it lands in bucket 110/5 = 22.
	const wantIdx = 22
	nonZero := 0
	for i, b := range pv.Chart.Buckets {
		if b.Count != 0 {
			nonZero++
			if i != wantIdx {
				t.Fatalf("non-zero bucket at index %d, want %d", i, wantIdx)
			}
		}
	}
	if nonZero != 1 {
		t.Fatalf("nonZero buckets = %d, want 1", nonZero)
	}
}

func TestBuildTopCoinTieBreaksLexicographically(t *testing.T) {
	now := mustTime(t, "2026-01-01T00:00:00Z")
	w := []events.Event{
		{TID: 1, TimeMs: now.UnixMilli(), Coin: "BTC", Dir: events.DirLong, Notional: 100},
		{TID: 2, TimeMs: now.UnixMilli(), Coin: "ALT", Dir: events.DirShort, Notional: 100},
	}
	pv := Build(w, now, Periods[0])
	if pv.Stats.TopCoin != "ALT" {
		t.Fatalf("topCoin = %s, want ALT", pv.Stats.TopCoin)
	}
}

func TestBuildBucketSumsApproximateStatsVolume(t *testing.T) {
	now := mustTime(t, "2026-01-01T01:00:00Z")
	w := []events.Event{
		{TID: 1, TimeMs: now.Add(-90 * time.Minute).UnixMilli(), Coin: "BTC", Dir: events.DirLong, Notional: 50},
		{TID: 2, TimeMs: now.Add(-30 * time.Minute).UnixMilli(), Coin: "ETH", Dir: events.DirShort, Notional: 75.555},
	}
	pv := Build(w, now, Periods[1]) // 4h/5m

	var bucketTotal float64
	for _, b := range pv.Chart.Buckets {
		bucketTotal += b.Volume
	}
	if diff := bucketTotal - pv.Stats.TotalVolume; diff > 0.01 || diff < -0.01 {
		t.Fatalf("bucket total = %f, stats total = %f", bucketTotal, pv.Stats.TotalVolume)
	}
}

func TestBuildLongShortSumsEqualTotals(t *testing.T) {
	now := mustTime(t, "2026-01-01T00:00:00Z")
	w := []events.Event{
		{TID: 1, TimeMs: now.UnixMilli(), Coin: "BTC", Dir: events.DirLong, Notional: 100},
		{TID: 2, TimeMs: now.UnixMilli(), Coin: "BTC", Dir: events.DirShort, Notional: 50},
	}
	pv := Build(w, now, Periods[0])
	s := pv.Stats
	if s.LongCount+s.ShortCount != s.Count {
		t.Fatalf("longCount+shortCount = %d, count = %d", s.LongCount+s.ShortCount, s.Count)
	}
	if s.LongVolume+s.ShortVolume != s.TotalVolume {
		t.Fatalf("longVolume+shortVolume = %f, totalVolume = %f", s.LongVolume+s.ShortVolume, s.TotalVolume)
	}
}

func TestBuildExcludesEventsOutsidePeriod(t *testing.T) {
	now := mustTime(t, "2026-01-01T03:00:00Z")
	w := []events.Event{
		{TID: 1, TimeMs: now.Add(-3 * time.Hour).UnixMilli(), Coin: "BTC", Dir: events.DirLong, Notional: 100},
	}
	pv := Build(w, now, Periods[0]) // 2h period, event is 3h old
	if pv.Stats.Count != 0 {
		t.Fatalf("stats.Count = %d, want 0 for event outside period", pv.Stats.Count)
	}
}
