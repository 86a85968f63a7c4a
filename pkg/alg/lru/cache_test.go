package lru_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/issuetrend/pkg/alg/lru"
)

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	c := lru.New(lru.WithMaxEntries[int, string](2))
	c.Put(1, "one")
	c.Put(2, "two")

	_, ok := c.Get(1)
	assert.True(t, ok)

	c.Put(3, "three")

	_, ok = c.Get(2)
	assert.False(t, ok, "2 was least recently used")

	v, ok := c.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "one", v)
	assert.Equal(t, 2, c.Len())

	hits, misses := c.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
}

func TestCache_SizeLimit(t *testing.T) {
	t.Parallel()

	c := lru.New(lru.WithMaxSize[string, []int](5, func(v []int) int64 { return int64(len(v)) }))
	c.Put("a", []int{1, 2})
	c.Put("b", []int{1, 2})
	c.Put("c", []int{1, 2})

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())

	c.Put("huge", make([]int, 10))
	_, ok = c.Get("huge")
	assert.False(t, ok, "values larger than the cache are dropped")

	c.Put("b", []int{1, 2, 3, 4})
	_, ok = c.Get("c")
	assert.False(t, ok, "growing b evicts c")
	assert.Equal(t, 1, c.Len())
}

func TestCache_Remove(t *testing.T) {
	t.Parallel()

	c := lru.New(lru.WithMaxEntries[int, int](3))
	c.Put(1, 1)
	c.Remove(1)
	c.Remove(42)

	assert.Equal(t, 0, c.Len())
}

func TestCache_RequiresLimit(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { lru.New[int, int]() })
}

func TestCache_Concurrent(t *testing.T) {
	t.Parallel()

	c := lru.New(lru.WithMaxEntries[int, int](16))

	var wg sync.WaitGroup

	for w := range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range 200 {
				c.Put(w*1000+i, i)
				c.Get(w*1000 + i/2)
			}
		}()
	}

	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 16)
}
