package concurrentMap

import (
	"sync"
)

// ConcurrentMap is a concurrent-safe map.
type ConcurrentMap[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

// NewConcurrentMap creates a new ConcurrentMap.
func NewConcurrentMap[K comparable, V any]() *ConcurrentMap[K, V] {
	return &ConcurrentMap[K, V]{
		items: make(map[K]V),
	}
}

// Get retrieves the value associated with the given key.
func (m *ConcurrentMap[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.items[key]
	return value, ok
}

// Set sets the value associated with the given key.
func (m *ConcurrentMap[K, V]) Set(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = value
}

// SetIfAbsent stores value only when key is not present and reports whether it did.
func (m *ConcurrentMap[K, V]) SetIfAbsent(key K, value V) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[key]; ok {
		return false
	}
	m.items[key] = value
	return true
}

// Pop removes key and returns the value it held. Of several concurrent
// callers for the same key exactly one observes ok == true.
func (m *ConcurrentMap[K, V]) Pop(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.items[key]
	if ok {
		delete(m.items, key)
	}
	return value, ok
}

// Delete removes the key-value pair associated with the given key.
func (m *ConcurrentMap[K, V]) Delete(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
}

// Drain empties the map and returns what it held.
func (m *ConcurrentMap[K, V]) Drain() map[K]V {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.items
	m.items = make(map[K]V)
	return items
}

// Range iterates over a snapshot of the map, so f may call back into m.
func (m *ConcurrentMap[K, V]) Range(f func(key K, value V)) {
	for key, value := range m.Items() {
		f(key, value)
	}
}

// Len returns the number of items in the map.
func (m *ConcurrentMap[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Items returns a copy of all items in the map.
func (m *ConcurrentMap[K, V]) Items() map[K]V {
	m.mu.RLock()
	defer m.mu.RUnlock()

	itemsCopy := make(map[K]V, len(m.items))
	for k, v := range m.items {
		itemsCopy[k] = v
	}
	return itemsCopy
}
