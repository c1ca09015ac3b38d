package cache

import (
	"sync"
	"time"
)

// Clock returns the current time. Tests inject a deterministic one.
type Clock func() time.Time

// Cache is a bounded key -> (value, expiry) mapping with a TTL per key.
type Cache[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V, ttl time.Duration)
	Expire(key string)
	Reset()
}

type entry[V any] struct {
	value  V
	expiry time.Time
}

// TTLCache is the default Cache implementation. When the cache is full, the
// entry with the earliest expiry is evicted to make room.
type TTLCache[V any] struct {
	mu       sync.Mutex
	entries  map[string]entry[V]
	capacity int
	now      Clock
}

// NewTTLCache creates a cache holding at most capacity entries, reading time
// from the given clock. A nil clock means time.Now.
func NewTTLCache[V any](capacity int, now Clock) *TTLCache[V] {
	if now == nil {
		now = time.Now
	}

	if capacity <= 0 {
		capacity = 1
	}

	return &TTLCache[V]{
		entries:  make(map[string]entry[V], capacity),
		capacity: capacity,
		now:      now,
	}
}

// Get returns the value for key if present and not expired. Expired entries
// are removed on access.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V

	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}

	if !c.now().Before(e.expiry) {
		delete(c.entries, key)

		return zero, false
	}

	return e.value, true
}

// Set stores value under key for ttl. A non-positive ttl stores nothing.
func (c *TTLCache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.evictSoonest()
	}

	c.entries[key] = entry[V]{
		value:  value,
		expiry: c.now().Add(ttl),
	}
}

// Expire removes key immediately.
func (c *TTLCache[V]) Expire(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Reset drops all entries.
func (c *TTLCache[V]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry[V], c.capacity)
}

// GetOrLoad returns the cached value for key, calling load on a miss and
// caching its result for ttl. Load errors are returned without caching.
func (c *TTLCache[V]) GetOrLoad(key string, ttl time.Duration, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err := load()
	if err != nil {
		return v, err
	}

	c.Set(key, v, ttl)

	return v, nil
}

// evictSoonest removes the entry closest to expiry. Caller holds the lock.
func (c *TTLCache[V]) evictSoonest() {
	var (
		victim string
		oldest time.Time
		found  bool
	)

	for k, e := range c.entries {
		if !found || e.expiry.Before(oldest) {
			victim = k
			oldest = e.expiry
			found = true
		}
	}

	if found {
		delete(c.entries, victim)
	}
}
