// views.go — the derived-view builder: a pure function from a
// rolling-window event list to per-period stats and time-bucket blobs.
// Build computes one period's stats and buckets in a single loop over the
// window; BuildAll runs it once per configured period.
package views

import (
	"math"
	"sort"
	"time"

	"github.com/liquidterminal/liq-stream/internal/events"
)

// PeriodConfig is one window of the closed set: its name, length in hours,
// and bucket width.
type PeriodConfig struct {
	Name        string
	Hours       int
	BucketWidth time.Duration
}

// Periods is the fixed period table: {2h,4h -> 5m; 8h,12h -> 15m; 24h -> 30m}.
var Periods = []PeriodConfig{
	{Name: "2h", Hours: 2, BucketWidth: 5 * time.Minute},
	{Name: "4h", Hours: 4, BucketWidth: 5 * time.Minute},
	{Name: "8h", Hours: 8, BucketWidth: 15 * time.Minute},
	{Name: "12h", Hours: 12, BucketWidth: 15 * time.Minute},
	{Name: "24h", Hours: 24, BucketWidth: 30 * time.Minute},
}

// Stats is the statistics record for one period.
type Stats struct {
	TotalVolume   float64 `json:"totalVolume"`
	Count         int     `json:"count"`
	LongCount     int     `json:"longCount"`
	ShortCount    int     `json:"shortCount"`
	LongVolume    float64 `json:"longVolume"`
	ShortVolume   float64 `json:"shortVolume"`
	TopCoin       string  `json:"topCoin"`
	TopCoinVolume float64 `json:"topCoinVolume"`
	AvgSize       float64 `json:"avgSize"`
	MaxLiq        float64 `json:"maxLiq"`
}

// Bucket is one fixed-width time slice within a period's chart.
type Bucket struct {
	TimestampMs int64   `json:"timestampMs"`
	Count       int     `json:"count"`
	Volume      float64 `json:"volume"`
	LongCount   int     `json:"longCount"`
	LongVolume  float64 `json:"longVolume"`
	ShortCount  int     `json:"shortCount"`
	ShortVolume float64 `json:"shortVolume"`
}

// Chart is the ordered bucket list for one period.
type Chart struct {
	Buckets []Bucket `json:"buckets"`
}

// PeriodView bundles the stats and chart for one period.
type PeriodView struct {
	Stats Stats `json:"stats"`
	Chart Chart `json:"chart"`
}

// AllPeriods is the composite blob: one PeriodView per configured period
// name, served by /liquidations/data and cached under
// snapshotcache.KeyAllData.
type AllPeriods map[string]PeriodView

// BuildAll computes every configured period's view from a single scan set
// (one pass per period, all over the same w, satisfying I1).
func BuildAll(w []events.Event, now time.Time) AllPeriods {
	out := make(AllPeriods, len(Periods))
	for _, p := range Periods {
		out[p.Name] = Build(w, now, p)
	}
	return out
}

// Build computes the stats and chart for a single period.
func Build(w []events.Event, now time.Time, p PeriodConfig) PeriodView {
	startMs := now.Add(-time.Duration(p.Hours) * time.Hour).UnixMilli()
	widthMs := p.BucketWidth.Milliseconds()
	periodMs := int64(p.Hours) * 3600 * 1000
	k := int((periodMs + widthMs - 1) / widthMs) // ceil

	buckets := make([]Bucket, k)
	for i := range buckets {
		buckets[i].TimestampMs = startMs + int64(i)*widthMs
	}

	var stats Stats
	coinVolume := make(map[string]float64)

	for _, e := range w {
		if e.TimeMs < startMs {
			continue
		}

		idx := int((e.TimeMs - startMs) / widthMs)
		if idx >= 0 && idx < k {
			b := &buckets[idx]
			b.Count++
			b.Volume = round2(b.Volume + e.Notional)
			if e.Dir == events.DirLong {
				b.LongCount++
				b.LongVolume = round2(b.LongVolume + e.Notional)
			} else {
				b.ShortCount++
				b.ShortVolume = round2(b.ShortVolume + e.Notional)
			}
		}

		stats.Count++
		stats.TotalVolume += e.Notional
		if e.Dir == events.DirLong {
			stats.LongCount++
			stats.LongVolume += e.Notional
		} else {
			stats.ShortCount++
			stats.ShortVolume += e.Notional
		}
		if e.Notional > stats.MaxLiq {
			stats.MaxLiq = e.Notional
		}
		coinVolume[e.Coin] += e.Notional
	}

	stats.TotalVolume = round2(stats.TotalVolume)
	stats.LongVolume = round2(stats.LongVolume)
	stats.ShortVolume = round2(stats.ShortVolume)
	stats.MaxLiq = round2(stats.MaxLiq)

	if stats.Count > 0 {
		stats.AvgSize = round2(stats.TotalVolume / float64(stats.Count))
		stats.TopCoin, stats.TopCoinVolume = topCoin(coinVolume)
	} else {
		stats.TopCoin = "N/A"
	}

	return PeriodView{Stats: stats, Chart: Chart{Buckets: buckets}}
}

// topCoin picks the coin with the largest accumulated volume, breaking
// ties by lexicographically smallest coin name.
func topCoin(coinVolume map[string]float64) (string, float64) {
	coins := make([]string, 0, len(coinVolume))
	for c := range coinVolume {
		coins = append(coins, c)
	}
	sort.Strings(coins)

	best := coins[0]
	bestVol := coinVolume[best]
	for _, c := range coins[1:] {
		if coinVolume[c] > bestVol {
			best = c
			bestVol = coinVolume[c]
		}
	}
	return best, round2(bestVol)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
