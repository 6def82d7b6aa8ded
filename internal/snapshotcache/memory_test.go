package snapshotcache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheSetGetRoundTrip(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v" {
		t.Fatalf("Get() = %q, %v, %v", got, ok, err)
	}
}

func TestMemoryCacheMissReturnsFalse(t *testing.T) {
	c := NewMemory()
	_, ok, err := c.Get(context.Background(), "missing")
	if err != nil || ok {
		t.Fatalf("Get(missing) = ok=%v err=%v, want ok=false", ok, err)
	}
}

func TestMemoryCacheExpiresByTTL(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	_ = c.Set(ctx, "k", []byte("v"), 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	_, ok, _ := c.Get(ctx, "k")
	if ok {
		t.Fatalf("Get() after TTL expiry = ok=true, want false")
	}
}

func TestMemoryCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	_ = c.Set(ctx, "k", []byte("v"), 0)
	time.Sleep(5 * time.Millisecond)
	_, ok, _ := c.Get(ctx, "k")
	if !ok {
		t.Fatalf("Get() with zero TTL = ok=false, want true")
	}
}

func TestMemoryCachePublishSubscribeDelivers(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	received := make(chan []byte, 1)
	unsub, err := c.Subscribe(ctx, "chan1", func(msg []byte) { received <- msg })
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer unsub()

	if err := c.Publish(ctx, "chan1", []byte("hello")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-received:
		if string(msg) != "hello" {
			t.Fatalf("received = %q, want hello", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for delivery")
	}
}

func TestMemoryCacheUnsubscribeStopsDelivery(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	count := 0
	unsub, _ := c.Subscribe(ctx, "chan1", func([]byte) { count++ })
	unsub()

	_ = c.Publish(ctx, "chan1", []byte("hello"))
	if count != 0 {
		t.Fatalf("count = %d after unsubscribe, want 0", count)
	}
}

func TestKeyBuildersProduceExpectedFormat(t *testing.T) {
	if got := KeyRecent(2, 100); got != "liquidations:recent:2h:100" {
		t.Fatalf("KeyRecent() = %q", got)
	}
	if got := KeyChart("4h"); got != "liquidations:chart:4h" {
		t.Fatalf("KeyChart() = %q", got)
	}
}
