package concurrentMap_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/abhissng/conduit/utils/concurrentMap"
	"github.com/stretchr/testify/assert"
)

func TestPopIsExclusive(t *testing.T) {
	m := concurrentMap.NewConcurrentMap[string, int]()
	m.Set("k", 7)

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := m.Pop("k"); ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
	assert.Equal(t, 0, m.Len())
}

func TestSetIfAbsentAndDrain(t *testing.T) {
	m := concurrentMap.NewConcurrentMap[string, int]()
	assert.True(t, m.SetIfAbsent("a", 1))
	assert.False(t, m.SetIfAbsent("a", 2))

	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	m.Set("b", 2)
	drained := m.Drain()
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, drained)
	assert.Equal(t, 0, m.Len())
}
