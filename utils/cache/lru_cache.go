package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type lruCacheItem[V any] struct {
	value  V
	expiry time.Time // zero means no expiry
}

func (i lruCacheItem[V]) expired(now time.Time) bool {
	return !i.expiry.IsZero() && now.After(i.expiry)
}

// LRUCache is a bounded least-recently-used cache whose entries may carry
// an expiry. Expired entries are dropped lazily on Get and by a periodic sweep.
type LRUCache[K comparable, V any] struct {
	cache           *lru.Cache[K, lruCacheItem[V]]
	mu              sync.Mutex
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	now             func() time.Time
}

// NewLRUCache creates a new LRU cache with the specified maximum size.
func NewLRUCache[K comparable, V any](maxSize int) *LRUCache[K, V] {
	return NewLRUCacheWithCleanupInterval[K, V](maxSize, DefaultCleanupInterval)
}

// NewLRUCacheWithCleanupInterval creates a new LRU cache with the specified capacity and cleanup interval
func NewLRUCacheWithCleanupInterval[K comparable, V any](maxSize int, cleanupInterval time.Duration) *LRUCache[K, V] {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	cache, err := lru.New[K, lruCacheItem[V]](maxSize)
	if err != nil {
		// only reachable with a non-positive size, which is handled above
		panic("failed to create LRU cache: " + err.Error())
	}

	c := &LRUCache[K, V]{
		cache:           cache,
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
		now:             time.Now,
	}
	go c.startCleanup()
	return c
}

// Set adds or updates an item in the cache without expiry
func (c *LRUCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(key, lruCacheItem[V]{value: value})
}

// SetWithExpiry adds or updates an item in the cache with an expiry time
func (c *LRUCache[K, V]) SetWithExpiry(key K, value V, expiry time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(key, lruCacheItem[V]{value: value, expiry: c.now().Add(expiry)})
}

// Get retrieves an item from the cache
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	item, found := c.cache.Get(key)
	if !found {
		return zero, false
	}
	if item.expired(c.now()) {
		c.cache.Remove(key)
		return zero, false
	}
	return item.value, true
}

// Delete removes an item from the cache
func (c *LRUCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Remove(key)
}

// Clear removes all items from the cache
func (c *LRUCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
}

// Len returns the number of items in the cache, expired or not.
func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

func (c *LRUCache[K, V]) startCleanup() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanupExpired()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *LRUCache[K, V]) cleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, key := range c.cache.Keys() {
		// Peek keeps the recency order intact
		if item, ok := c.cache.Peek(key); ok && item.expired(now) {
			c.cache.Remove(key)
		}
	}
}

// StopCleanup stops the background cleanup goroutine. Safe to call more than once.
func (c *LRUCache[K, V]) StopCleanup() {
	c.stopOnce.Do(func() { close(c.stopCleanup) })
}
