// Package cache implements the Response Cache component.
//
// The cache is a bounded key/value store with a per-entry TTL. Eviction is
// strictly FIFO by insertion order, not LRU: reads never refresh an entry's
// position, and overwriting an existing key keeps its original slot. This
// mirrors the dashboard's historical behavior and is load-bearing for
// consumers that rely on oldest-first turnover.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Cache is a bounded FIFO-evicting store with per-entry TTL.
// The zero value is not usable; construct with New.
type Cache[V any] struct {
	mu      sync.Mutex
	max     int
	entries map[string]*entry[V]
	order   *list.List // list of keys, front = oldest inserted

	hits   int64
	misses int64
}

type entry[V any] struct {
	value     V
	createdAt time.Time
	ttl       time.Duration
	elem      *list.Element
}

// Stats holds cache counters.
type Stats struct {
	Size   int
	Hits   int64
	Misses int64
}

// New creates a cache bounded to maxEntries.
func New[V any](maxEntries int) *Cache[V] {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Cache[V]{
		max:     maxEntries,
		entries: make(map[string]*entry[V]),
		order:   list.New(),
	}
}

// Get returns the value for key. A stale entry (age beyond its TTL) is
// treated as absent and removed.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return zero, false
	}

	if e.ttl > 0 && time.Since(e.createdAt) > e.ttl {
		c.removeLocked(key, e)
		c.misses++
		return zero, false
	}

	c.hits++
	return e.value, true
}

// Set stores value under key with the given TTL. When the cache is at
// capacity, the single oldest-inserted entry is evicted. Overwriting an
// existing key refreshes its value and timestamp but keeps its insertion
// position.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.createdAt = time.Now()
		e.ttl = ttl
		return
	}

	if len(c.entries) >= c.max {
		oldest := c.order.Front()
		if oldest != nil {
			k := oldest.Value.(string)
			c.removeLocked(k, c.entries[k])
		}
	}

	c.entries[key] = &entry[V]{
		value:     value,
		createdAt: time.Now(),
		ttl:       ttl,
		elem:      c.order.PushBack(key),
	}
}

// Delete removes key if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.removeLocked(key, e)
	}
}

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry[V])
	c.order.Init()
}

// Len returns the number of entries, including any not yet noticed as stale.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns current counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:   len(c.entries),
		Hits:   c.hits,
		Misses: c.misses,
	}
}

func (c *Cache[V]) removeLocked(key string, e *entry[V]) {
	c.order.Remove(e.elem)
	delete(c.entries, key)
}
