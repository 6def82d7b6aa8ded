package registry

import (
	"testing"

	"github.com/liquidterminal/liq-stream/internal/events"
)

func TestFilterMatchANDsAllProvidedFields(t *testing.T) {
	f := Filter{Coin: "btc", MinNotional: 100, User: "0xabc"}
	e := events.Event{Coin: "BTC", Notional: 150, Liquidated: "0xABC"}
	if !f.Match(e) {
		t.Fatalf("Match() = false, want true")
	}

	e2 := events.Event{Coin: "ETH", Notional: 150, Liquidated: "0xABC"}
	if f.Match(e2) {
		t.Fatalf("Match() = true for mismatched coin, want false")
	}

	e3 := events.Event{Coin: "BTC", Notional: 50, Liquidated: "0xABC"}
	if f.Match(e3) {
		t.Fatalf("Match() = true for notional below floor, want false")
	}
}

func TestFilterEmptyMatchesEverything(t *testing.T) {
	f := Filter{}
	if !f.Match(events.Event{Coin: "BTC", Notional: 1}) {
		t.Fatalf("empty Filter should match any event")
	}
}
