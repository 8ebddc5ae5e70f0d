package cache

import "time"

// Cache defines an interface for generic caching operations.
type Cache[K comparable, V any] interface {
	Set(key K, value V)                                 // Set the value associated with the given key.
	SetWithExpiry(key K, value V, expiry time.Duration) // Set the value with an expiration time.
	Get(key K) (V, bool)                                // Get the value and whether it is present and unexpired.
	Delete(key K)                                       // Delete the entry associated with the given key.
	Clear()                                             // Clear all entries from the cache.
	Len() int                                           // Return the number of entries currently in the cache.
	StopCleanup()                                       // Stop the background cleanup goroutine.
}

// Defaults applied when a cache is created with zero values.
const (
	DefaultMaxSize         = 1024
	DefaultCleanupInterval = 5 * time.Minute
)
