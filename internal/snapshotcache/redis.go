// redis.go — Cache backed by go-redis/v9, for multi-instance deployments
// where every process must observe the same composite blobs and the same
// broadcast channel.
package snapshotcache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache adapts a *redis.Client to the Cache interface.
type RedisCache struct {
	client *redis.Client
}

// NewRedis builds a RedisCache from a connection URL, e.g.
// "redis://host:6379/0".
func NewRedis(url string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Publish(ctx context.Context, channel string, message []byte) error {
	return c.client.Publish(ctx, channel, message).Err()
}

// Subscribe starts a background goroutine delivering messages to handler
// until the returned unsubscribe func is called or ctx is canceled.
func (c *RedisCache) Subscribe(ctx context.Context, channel string, handler func([]byte)) (func(), error) {
	pubsub := c.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		select {
		case <-done:
		default:
			close(done)
		}
		_ = pubsub.Close()
	}, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
