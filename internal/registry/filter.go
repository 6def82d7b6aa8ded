package registry

import "github.com/liquidterminal/liq-stream/internal/events"

// Filter is a subscriber's session filter: coin and user
// compare case-insensitively, minNotional is an inclusive floor. All
// provided fields are ANDed.
type Filter struct {
	Coin        string
	MinNotional float64
	User        string
}

// Match reports whether e passes every filter field that was provided.
func (f Filter) Match(e events.Event) bool {
	if f.Coin != "" && !e.CoinEquals(f.Coin) {
		return false
	}
	if f.MinNotional > 0 && e.Notional < f.MinNotional {
		return false
	}
	if f.User != "" && !e.LiquidatedEquals(f.User) {
		return false
	}
	return true
}
