// Package ttlcache provides a keyed cache for expensive probes whose results
// stay valid for a fixed window (SMART health, full sensor rescans).
//
// Both present and absent outcomes are cached: an unavailable probe is asked
// again only after its TTL expires. Fresh reads take a shared lock; a miss is
// recomputed once per key no matter how many callers arrive concurrently, and
// the compute function runs without any cache lock held.
package ttlcache

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Entry is a cached outcome and the time it was recorded.
type Entry[V any] struct {
	Value      V
	Present    bool
	RecordedAt time.Time
}

// Cache maps string keys to time-stamped outcomes.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]Entry[V]
	group   singleflight.Group
	now     func() time.Time
}

// Option configures a Cache.
type Option[V any] func(*Cache[V])

// WithClock replaces time.Now, mainly for tests.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) { c.now = now }
}

// New creates an empty cache.
func New[V any](opts ...Option[V]) *Cache[V] {
	c := &Cache[V]{
		entries: make(map[string]Entry[V]),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrCompute returns the cached outcome for key if it was recorded less than
// ttl ago. Otherwise it calls compute, stores the outcome (absent included)
// with a fresh timestamp and returns it.
func (c *Cache[V]) GetOrCompute(key string, ttl time.Duration, compute func() (V, bool)) (V, bool) {
	if e, ok := c.Fresh(key, ttl); ok {
		return e.Value, e.Present
	}

	res, _, _ := c.group.Do(key, func() (interface{}, error) {
		// Another caller may have refreshed the entry while we waited.
		if e, ok := c.Fresh(key, ttl); ok {
			return e, nil
		}

		value, present := compute()
		e := Entry[V]{Value: value, Present: present, RecordedAt: c.now()}

		c.mu.Lock()
		c.entries[key] = e
		c.mu.Unlock()

		return e, nil
	})

	e := res.(Entry[V])
	return e.Value, e.Present
}

// Retain drops entries whose keys fail keep, so a source that disappears
// (an unmounted drive) does not pin its last outcome.
func (c *Cache[V]) Retain(keep func(string) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if !keep(k) {
			delete(c.entries, k)
		}
	}
}

// Fresh returns the entry for key only if it was recorded less than ttl ago.
func (c *Cache[V]) Fresh(key string, ttl time.Duration) (Entry[V], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return Entry[V]{}, false
	}
	if c.now().Sub(e.RecordedAt) >= ttl {
		return Entry[V]{}, false
	}
	return e, true
}
