package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/liquidterminal/liq-stream/internal/events"
	"github.com/liquidterminal/liq-stream/internal/snapshotcache"
)

func TestPublishSubscribeRoundTrip(t *testing.T) {
	cache := snapshotcache.NewMemory()
	ctx := context.Background()

	busA := New(cache, "")
	busB := New(cache, "")

	received := make(chan Message, 1)
	unsub, err := busB.Subscribe(ctx, func(m Message) { received <- m })
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer unsub()

	evs := []events.Event{{TID: 1, Coin: "BTC"}, {TID: 2, Coin: "ETH"}}
	if err := busA.Publish(ctx, evs); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case m := <-received:
		if len(m.Events) != 2 || m.Events[0].TID != 1 || m.Events[1].TID != 2 {
			t.Fatalf("received = %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for broadcast")
	}
}

func TestPublishEmptyEventsIsNoOp(t *testing.T) {
	cache := snapshotcache.NewMemory()
	ctx := context.Background()
	bus := New(cache, "")

	called := false
	unsub, _ := bus.Subscribe(ctx, func(Message) { called = true })
	defer unsub()

	if err := bus.Publish(ctx, nil); err != nil {
		t.Fatalf("Publish(nil) error = %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if called {
		t.Fatalf("handler invoked for empty publish")
	}
}
