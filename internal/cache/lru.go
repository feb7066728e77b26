// Package cache provides a bounded LRU cache for decoded segments.
package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU is a thread-safe least-recently-used cache bounded by entry count,
// with hit and miss accounting.
type LRU[K comparable, V any] struct {
	c *lru.Cache[K, V] // nil when disabled

	hits   atomic.Int64
	misses atomic.Int64
}

// NewLRU creates a cache holding at most capacity entries.
// A capacity <= 0 disables caching: Set is a no-op and Get always misses.
func NewLRU[K comparable, V any](capacity int) *LRU[K, V] {
	l := &LRU[K, V]{}
	if capacity > 0 {
		// lru.New only fails for non-positive sizes.
		l.c, _ = lru.New[K, V](capacity)
	}
	return l
}

// Get returns a cached value.
func (l *LRU[K, V]) Get(key K) (V, bool) {
	if l.c != nil {
		if v, ok := l.c.Get(key); ok {
			l.hits.Add(1)
			return v, true
		}
	}
	l.misses.Add(1)
	var zero V
	return zero, false
}

// Set caches a value, evicting the least recently used entry when full.
func (l *LRU[K, V]) Set(key K, value V) {
	if l.c != nil {
		l.c.Add(key, value)
	}
}

// Remove drops key from the cache.
func (l *LRU[K, V]) Remove(key K) {
	if l.c != nil {
		l.c.Remove(key)
	}
}

// Invalidate removes entries matching the predicate.
func (l *LRU[K, V]) Invalidate(predicate func(key K) bool) {
	if l.c == nil {
		return
	}
	for _, key := range l.c.Keys() {
		if predicate(key) {
			l.c.Remove(key)
		}
	}
}

// Len returns the number of cached entries.
func (l *LRU[K, V]) Len() int {
	if l.c == nil {
		return 0
	}
	return l.c.Len()
}

// Stats returns hit and miss counters.
func (l *LRU[K, V]) Stats() (hits, misses int64) {
	return l.hits.Load(), l.misses.Load()
}
