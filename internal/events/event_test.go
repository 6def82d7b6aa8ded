package events

import "testing"

func TestNormalizeRecomputesTimeMs(t *testing.T) {
	e := &Event{TID: 1, Time: "2026-01-01T00:00:10Z", Coin: "BTC", Dir: DirLong, Notional: 100, TimeMs: 999}
	if err := e.Normalize(); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	want := int64(1767225610000)
	if e.TimeMs != want {
		t.Fatalf("TimeMs = %d, want %d", e.TimeMs, want)
	}
}

func TestNormalizeRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		e    Event
	}{
		{"bad time", Event{TID: 1, Time: "not-a-time", Coin: "BTC", Dir: DirLong}},
		{"zero tid", Event{TID: 0, Time: "2026-01-01T00:00:00Z", Coin: "BTC", Dir: DirLong}},
		{"bad dir", Event{TID: 1, Time: "2026-01-01T00:00:00Z", Coin: "BTC", Dir: "Sideways"}},
		{"negative notional", Event{TID: 1, Time: "2026-01-01T00:00:00Z", Coin: "BTC", Dir: DirLong, Notional: -5}},
		{"empty coin", Event{TID: 1, Time: "2026-01-01T00:00:00Z", Coin: "  ", Dir: DirLong}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := tc.e
			if err := e.Normalize(); err == nil {
				t.Fatalf("Normalize() expected error, got nil")
			}
		})
	}
}

func TestCoinAndLiquidatedEqualsCaseInsensitive(t *testing.T) {
	e := &Event{Coin: "BTC", Liquidated: "0xABC"}
	if !e.CoinEquals("btc") {
		t.Fatalf("CoinEquals(\"btc\") = false, want true")
	}
	if !e.LiquidatedEquals("0xabc") {
		t.Fatalf("LiquidatedEquals(\"0xabc\") = false, want true")
	}
	if e.CoinEquals("eth") {
		t.Fatalf("CoinEquals(\"eth\") = true, want false")
	}
}
