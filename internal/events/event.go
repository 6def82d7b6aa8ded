// event.go — the canonical liquidation event type and field-level validation.
package events

import (
	"fmt"
	"strings"

	"github.com/liquidterminal/liq-stream/internal/util"
)

// Direction is the side of the liquidated position.
type Direction string

const (
	DirLong  Direction = "Long"
	DirShort Direction = "Short"
)

// Event is a single observed liquidation. Events are immutable once observed;
// callers must treat a *Event as read-only after Normalize succeeds.
type Event struct {
	TID         int64     `json:"tid"`
	Time        string    `json:"time"`    // authoritative, RFC3339
	TimeMs      int64     `json:"time_ms"` // recomputed from Time, never trusted from upstream
	Coin        string    `json:"coin"`
	Dir         Direction `json:"dir"`
	Notional    float64   `json:"notional"`
	MarkPrice   float64   `json:"mark_price"`
	Liquidated  string    `json:"liquidated_user"`
	Liquidators []string  `json:"liquidators,omitempty"`
}

// Normalize recomputes TimeMs from Time (Time is authoritative; time_ms
// has been observed corrupted upstream) and validates the remaining
// required fields. It mutates e in place on success.
func (e *Event) Normalize() error {
	t := util.ParseTimestamp(e.Time)
	if t.IsZero() {
		return fmt.Errorf("event %d: invalid time %q", e.TID, e.Time)
	}
	e.TimeMs = t.UnixMilli()

	if e.TID <= 0 {
		return fmt.Errorf("event: tid must be positive, got %d", e.TID)
	}
	if e.Dir != DirLong && e.Dir != DirShort {
		return fmt.Errorf("event %d: invalid dir %q", e.TID, e.Dir)
	}
	if e.Notional < 0 {
		return fmt.Errorf("event %d: negative notional %f", e.TID, e.Notional)
	}
	if strings.TrimSpace(e.Coin) == "" {
		return fmt.Errorf("event %d: empty coin", e.TID)
	}
	return nil
}

// CoinEquals reports whether the event's coin matches s, case-insensitively.
func (e *Event) CoinEquals(s string) bool {
	return strings.EqualFold(e.Coin, s)
}

// LiquidatedEquals reports whether the event's liquidated user matches s,
// case-insensitively.
func (e *Event) LiquidatedEquals(s string) bool {
	return strings.EqualFold(e.Liquidated, s)
}
