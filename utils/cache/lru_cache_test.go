package cache_test

import (
	"testing"
	"time"

	"github.com/abhissng/conduit/utils/cache"
	"github.com/stretchr/testify/assert"
)

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := cache.NewLRUCache[string, int](2)
	defer c.StopCleanup()

	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Len())
}

func TestLRUCacheExpiry(t *testing.T) {
	c := cache.NewLRUCache[string, string](4)
	defer c.StopCleanup()

	c.SetWithExpiry("short", "x", 20*time.Millisecond)
	c.Set("forever", "y")

	v, ok := c.Get("short")
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	assert.Eventually(t, func() bool {
		_, ok := c.Get("short")
		return !ok
	}, time.Second, 10*time.Millisecond)

	_, ok = c.Get("forever")
	assert.True(t, ok)

	c.StopCleanup()
	c.StopCleanup()
}

var _ cache.Cache[string, int] = (*cache.LRUCache[string, int])(nil)
