// Package cache holds a small in-process TTL cache. Tenant subdomain
// resolution and message-template lookups sit on the inbound SMS path, so
// both keep their hot entries here instead of hitting the database per text.
package cache

import (
	"sync"
	"time"
)

// sweepEvery bounds how many writes go by between purges of expired entries,
// so a churning key set cannot grow the map without bound.
const sweepEvery = 512

// Cache is the read-through surface services depend on.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
	Delete(key K)
}

type entry[V any] struct {
	value    V
	deadline int64 // unix nanos, 0 = no expiry
}

// TTLCache is a mutex-guarded map with per-entry expiry.
type TTLCache[K comparable, V any] struct {
	mu     sync.RWMutex
	items  map[K]entry[V]
	writes int
}

func NewTTLCache[K comparable, V any]() *TTLCache[K, V] {
	return &TTLCache[K, V]{items: make(map[K]entry[V])}
}

// Get returns the live value for key. Expired entries read as misses and
// are dropped on the next sweep.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || expired(item.deadline, time.Now()) {
		return zero, false
	}
	return item.value, true
}

// Set stores value under key for ttl. A non-positive ttl caches forever.
func (c *TTLCache[K, V]) Set(key K, value V, ttl time.Duration) {
	if c == nil {
		return
	}
	now := time.Now()
	var deadline int64
	if ttl > 0 {
		deadline = now.Add(ttl).UnixNano()
	}

	c.mu.Lock()
	c.items[key] = entry[V]{value: value, deadline: deadline}
	c.writes++
	if c.writes >= sweepEvery {
		c.writes = 0
		for k, item := range c.items {
			if expired(item.deadline, now) {
				delete(c.items, k)
			}
		}
	}
	c.mu.Unlock()
}

// Delete drops key. Used when a tenant is deactivated so stale resolutions
// cannot outlive the account.
func (c *TTLCache[K, V]) Delete(key K) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

func expired(deadline int64, now time.Time) bool {
	return deadline != 0 && now.UnixNano() > deadline
}
