// Package memory implements cache.Cache in process memory.
// It suits a single process; use the redis backend to share metadata across processes.
package memory

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gaborage/go-datasource/cache"
	"github.com/gaborage/go-datasource/cache/internal/tracking"
)

type entry struct {
	value      []byte
	expiration time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiration.IsZero() && !now.Before(e.expiration)
}

// Cache is an in-memory cache.Cache with lazy expiration.
type Cache struct {
	mu     sync.RWMutex
	data   map[string]entry
	closed atomic.Bool
	now    func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, letting tests move time forward.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates an empty Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		data: make(map[string]entry),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a copy of the stored value, or cache.ErrNotFound.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, cache.ErrClosed
	}
	start := time.Now()

	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()

	if ok && e.expired(c.now()) {
		c.mu.Lock()
		// re-check: a concurrent Set may have replaced the entry
		if cur, still := c.data[key]; still && cur.expired(c.now()) {
			delete(c.data, key)
		}
		c.mu.Unlock()
		ok = false
	}

	tracking.RecordCacheOperation(ctx, tracking.SystemMemory, tracking.OpGet, time.Since(start), ok, nil)
	if !ok {
		return nil, cache.ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores a copy of value.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return cache.ErrClosed
	}
	if ttl < 0 {
		return cache.ErrInvalidTTL
	}
	start := time.Now()

	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiration = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.data[key] = e
	c.mu.Unlock()

	tracking.RecordCacheOperation(ctx, tracking.SystemMemory, tracking.OpSet, time.Since(start), false, nil)
	return nil
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if c.closed.Load() {
		return cache.ErrClosed
	}
	start := time.Now()

	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()

	tracking.RecordCacheOperation(ctx, tracking.SystemMemory, tracking.OpDelete, time.Since(start), false, nil)
	return nil
}

// DeletePrefix removes all live keys starting with prefix. Expired entries are purged
// along the way but not counted.
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if c.closed.Load() {
		return 0, cache.ErrClosed
	}
	start := time.Now()
	now := c.now()

	removed := 0
	c.mu.Lock()
	for key, e := range c.data {
		switch {
		case e.expired(now):
			delete(c.data, key)
		case strings.HasPrefix(key, prefix):
			delete(c.data, key)
			removed++
		}
	}
	c.mu.Unlock()

	tracking.RecordCacheOperation(ctx, tracking.SystemMemory, tracking.OpDeletePrefix, time.Since(start), false, nil)
	return removed, nil
}

// Health reports ErrClosed after Close.
func (c *Cache) Health(context.Context) error {
	if c.closed.Load() {
		return cache.ErrClosed
	}
	return nil
}

// Len returns the number of stored entries, including expired ones not yet purged.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Close drops all entries. A second Close returns cache.ErrClosed.
func (c *Cache) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return cache.ErrClosed
	}
	c.mu.Lock()
	c.data = make(map[string]entry)
	c.mu.Unlock()
	return nil
}

var _ cache.Cache = (*Cache)(nil)
