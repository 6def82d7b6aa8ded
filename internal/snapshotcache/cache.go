// cache.go — the snapshot cache: get/set with TTL plus publish/subscribe
// over named channels. Two implementations share this interface: an
// in-process map for single-instance deployments, and a Redis-backed one
// (go-redis/v9) so N instances behind a load balancer see the same
// composite blobs and broadcast channel.
package snapshotcache

import (
	"context"
	"strconv"
	"time"
)

// Cache is the key-value + pub/sub store read/written by the refresh loop
// and read by HTTP handlers.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Publish(ctx context.Context, channel string, message []byte) error
	Subscribe(ctx context.Context, channel string, handler func(message []byte)) (unsubscribe func(), err error)
	Close() error
}

// Cache key names.
const (
	KeyAllData  = "liquidations:all-data"
	KeyStatsAll = "liquidations:stats:all"
	KeyLastTime = "liquidations:sse:lastTimeMs"

	ChannelBroadcast = "liquidations:sse:broadcast"
)

// KeyRecent builds the cache key for a recent/<hours>/<limit> blob.
func KeyRecent(hours, limit int) string {
	return "liquidations:recent:" + strconv.Itoa(hours) + "h:" + strconv.Itoa(limit)
}

// KeyChart builds the cache key for a chart/<period> blob.
func KeyChart(period string) string {
	return "liquidations:chart:" + period
}
