package idempotency

import (
	"time"

	"github.com/abhissng/conduit/utils/cache"
)

const (
	DefaultWindow   = 10 * time.Minute
	DefaultCapacity = 10_000
)

// IdempotencyManager remembers recently processed tracking IDs so that a
// redelivered message can be recognised and skipped. Memory is bounded: IDs
// fall out after the window elapses or when capacity forces eviction, so it is
// a fast path in front of idempotent handlers, not a replacement for them.
type IdempotencyManager[K comparable] struct {
	seen   *cache.LRUCache[K, struct{}]
	window time.Duration
}

// NewIdempotencyManager creates a manager remembering up to capacity IDs for window.
func NewIdempotencyManager[K comparable](window time.Duration, capacity int) *IdempotencyManager[K] {
	if window <= 0 {
		window = DefaultWindow
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &IdempotencyManager[K]{
		seen:   cache.NewLRUCacheWithCleanupInterval[K, struct{}](capacity, window),
		window: window,
	}
}

// MarkAsProcessed records trackingID as processed.
func (m *IdempotencyManager[K]) MarkAsProcessed(trackingID K) {
	m.seen.SetWithExpiry(trackingID, struct{}{}, m.window)
}

// IsProcessed checks if trackingID was processed within the window.
func (m *IdempotencyManager[K]) IsProcessed(trackingID K) bool {
	_, ok := m.seen.Get(trackingID)
	return ok
}

// Forget drops trackingID so it will be processed again.
func (m *IdempotencyManager[K]) Forget(trackingID K) {
	m.seen.Delete(trackingID)
}

// Close stops the background sweep.
func (m *IdempotencyManager[K]) Close() {
	m.seen.StopCleanup()
}
