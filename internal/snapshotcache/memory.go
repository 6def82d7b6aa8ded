package snapshotcache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value   []byte
	addedAt time.Time
	ttl     time.Duration
}

// isExpiredByTTL reports whether e was added more than ttl ago. A zero ttl
// never expires.
func isExpiredByTTL(addedAt time.Time, ttl time.Duration) bool {
	if ttl == 0 {
		return false
	}
	return time.Since(addedAt) >= ttl
}

// MemoryCache is a single-process Cache implementation: a mutex-guarded
// map plus a handler registry per channel. The pub/sub indirection is kept
// even though there's only one process, so call sites are identical to the
// Redis-backed implementation.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]entry

	subMu    sync.RWMutex
	handlers map[string][]func([]byte)
}

// NewMemory builds an empty MemoryCache.
func NewMemory() *MemoryCache {
	return &MemoryCache{
		data:     make(map[string]entry),
		handlers: make(map[string][]func([]byte)),
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()
	if !ok || isExpiredByTTL(e.addedAt, e.ttl) {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	c.data[key] = entry{value: value, addedAt: time.Now(), ttl: ttl}
	c.mu.Unlock()
	return nil
}

// Publish invokes every locally registered handler for channel synchronously
// but off the caller's goroutine ordering guarantee for a single process:
// since there is only one process, direct dispatch is equivalent to
// pub/sub round-tripping through a broker.
func (c *MemoryCache) Publish(_ context.Context, channel string, message []byte) error {
	c.subMu.RLock()
	handlers := append([]func([]byte){}, c.handlers[channel]...)
	c.subMu.RUnlock()

	for _, h := range handlers {
		if h == nil { // slot cleared by an unsubscribe
			continue
		}
		h(message)
	}
	return nil
}

func (c *MemoryCache) Subscribe(_ context.Context, channel string, handler func([]byte)) (func(), error) {
	c.subMu.Lock()
	c.handlers[channel] = append(c.handlers[channel], handler)
	idx := len(c.handlers[channel]) - 1
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		hs := c.handlers[channel]
		if idx < len(hs) {
			hs[idx] = nil
		}
	}, nil
}

func (c *MemoryCache) Close() error { return nil }
