package history

import (
	"context"

	"github.com/Sumatoshi-tech/issuetrend/pkg/alg/lru"
	"github.com/Sumatoshi-tech/issuetrend/pkg/build"
)

// DefaultCacheEntries is the number of results kept by NewCached when size <= 0.
const DefaultCacheEntries = 64

// Cached is a read-through LRU in front of a Loader. Results are immutable
// once stored, so cached values never go stale.
type Cached struct {
	loader Loader
	cache  *lru.Cache[build.ID, *build.Result]
}

// NewCached wraps loader with an LRU holding up to size results.
func NewCached(loader Loader, size int) *Cached {
	if size <= 0 {
		size = DefaultCacheEntries
	}

	return &Cached{
		loader: loader,
		cache:  lru.New(lru.WithMaxEntries[build.ID, *build.Result](size)),
	}
}

// Load implements Loader.
func (c *Cached) Load(ctx context.Context, id build.ID) (*build.Result, error) {
	if r, ok := c.cache.Get(id); ok {
		return r, nil
	}

	r, err := c.loader.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	c.cache.Put(id, r)

	return r, nil
}

// Stats reports cache hits and misses.
func (c *Cached) Stats() (hits, misses int64) {
	return c.cache.Stats()
}
