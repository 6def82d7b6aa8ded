// broadcast.go — the broadcast bus: publishes new-events batches on a
// named pub/sub channel and, in every process instance, fans received
// batches out to a local handler (normally the subscriber registry's
// BroadcastLocal). Delivery is fire-and-forget — no ack, retry, or
// dead-letter queue — since duplicate delivery is already harmless via
// each session's tid > lastEventId guard.
package broadcast

import (
	"context"
	"encoding/json"
	"time"

	"github.com/liquidterminal/liq-stream/internal/events"
	"github.com/liquidterminal/liq-stream/internal/logging"
	"github.com/liquidterminal/liq-stream/internal/snapshotcache"
)

// Message is the wire payload published on the broadcast channel.
type Message struct {
	Events    []events.Event `json:"events"`
	Timestamp time.Time      `json:"timestamp"`
}

// Bus publishes and receives BroadcastMessages over a snapshotcache.Cache's
// pub/sub channel.
type Bus struct {
	cache   snapshotcache.Cache
	channel string
}

// New builds a Bus over the given cache's pub/sub channel.
func New(cache snapshotcache.Cache, channel string) *Bus {
	if channel == "" {
		channel = snapshotcache.ChannelBroadcast
	}
	return &Bus{cache: cache, channel: channel}
}

// Publish fire-and-forgets a batch of newly observed events, ascending by
// tid (the caller is expected to have already sorted them).
func (b *Bus) Publish(ctx context.Context, evs []events.Event) error {
	if len(evs) == 0 {
		return nil
	}
	msg := Message{Events: evs, Timestamp: time.Now()}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.cache.Publish(ctx, b.channel, payload)
}

// Subscribe registers handler to receive every BroadcastMessage published
// on the bus's channel by any process instance, including this one.
// Malformed payloads are logged and dropped rather than propagated, since
// the bus has no caller to return an error to.
func (b *Bus) Subscribe(ctx context.Context, handler func(Message)) (func(), error) {
	return b.cache.Subscribe(ctx, b.channel, func(payload []byte) {
		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			logging.WithComponent("broadcast").Error().Err(err).Msg("dropping malformed broadcast message")
			return
		}
		handler(msg)
	})
}
