package cache

import (
	"context"
	"sync"
	"time"
)

type ttlEntry struct {
	b        []byte
	deadline time.Time
}

// TTLCache is the in-process fallback when no redis address is configured.
// Expired entries are dropped lazily on read.
type TTLCache struct {
	mu  sync.RWMutex
	m   map[string]ttlEntry
	now func() time.Time
}

func NewTTLCache() *TTLCache {
	return &TTLCache{m: make(map[string]ttlEntry), now: time.Now}
}

func (c *TTLCache) GetBytes(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.deadline.IsZero() && c.now().After(e.deadline) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.b, true, nil
}

func (c *TTLCache) SetBytes(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var deadline time.Time
	if ttl > 0 {
		deadline = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.m[key] = ttlEntry{b: value, deadline: deadline}
	c.mu.Unlock()
	return nil
}
