// window.go — assembles the 24h rolling window from paginated upstream
// pages into a deduplicated, time-ordered event list. The upstream client
// re-drains the whole 24h window every refresh pass, so rather than an
// in-place circular buffer, Assemble rebuilds the window from scratch
// each pass, deduplicating by tid and capping to a maximum size by
// keeping the most recent entries.
package window

import (
	"sort"

	"github.com/liquidterminal/liq-stream/internal/events"
)

// MaxEvents is the soft cap on the rolling window.
const MaxEvents = 5000

// Window is one fully-assembled rolling-window snapshot: deduplicated by
// tid, filtered to the cutoff, sorted ascending by tid.
type Window struct {
	Events []events.Event
}

// Assemble merges zero or more pages of (possibly overlapping) events into
// one Window. cutoffMs is the earliest time_ms to retain (now - 24h in
// milliseconds). Malformed events must already have been dropped by the
// caller — Assemble only dedups, filters, sorts, and caps.
func Assemble(pages [][]events.Event, cutoffMs int64, maxEvents int) Window {
	if maxEvents <= 0 {
		maxEvents = MaxEvents
	}

	byTID := make(map[int64]events.Event)
	for _, page := range pages {
		for _, e := range page {
			if e.TimeMs < cutoffMs {
				continue
			}
			byTID[e.TID] = e
		}
	}

	merged := make([]events.Event, 0, len(byTID))
	for _, e := range byTID {
		merged = append(merged, e)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].TID < merged[j].TID })

	if len(merged) > maxEvents {
		// Keep the most recent maxEvents (highest tid), still ascending.
		merged = merged[len(merged)-maxEvents:]
	}

	return Window{Events: merged}
}

// Since returns the subset of w with tid > lastObservedID, ascending by
// tid — the newly observed events since the last published marker.
func (w Window) Since(lastObservedID int64) []events.Event {
	out := make([]events.Event, 0)
	for _, e := range w.Events {
		if e.TID > lastObservedID {
			out = append(out, e)
		}
	}
	return out
}

// MaxTID returns the largest tid in w, or 0 if w is empty.
func (w Window) MaxTID() int64 {
	var max int64
	for _, e := range w.Events {
		if e.TID > max {
			max = e.TID
		}
	}
	return max
}

// SincePeriod returns the subset of w with TimeMs >= startMs, in original
// (ascending tid) order — used by the refresh loop to build the cached
// "recent" blob.
func (w Window) SincePeriod(startMs int64) []events.Event {
	out := make([]events.Event, 0, len(w.Events))
	for _, e := range w.Events {
		if e.TimeMs >= startMs {
			out = append(out, e)
		}
	}
	return out
}

// Len reports the number of events currently in the window.
func (w Window) Len() int { return len(w.Events) }
