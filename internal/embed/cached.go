package embed

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/semantica-dev/semantica/internal/errors"
	"github.com/semantica-dev/semantica/internal/ledger"
)

// DefaultCacheSize bounds the query-embedding cache.
const DefaultCacheSize = 512

// CachedProvider wraps a Provider with an LRU cache keyed by the text's
// content hash. It is used on the query path, where the same search
// strings recur; batch calls on the indexing path pass through
// untouched.
type CachedProvider struct {
	Provider
	cache *lru.Cache[string, []float32]
}

var _ Provider = (*CachedProvider)(nil)

// NewCachedProvider wraps inner with a cache of size entries.
func NewCachedProvider(inner Provider, size int) (*CachedProvider, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, "create embedding cache", err)
	}
	return &CachedProvider{Provider: inner, cache: cache}, nil
}

// Embed returns the cached vector when the exact text was embedded
// before, otherwise delegates and stores the result.
func (c *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	key := ledger.HashBytes([]byte(text))
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.Provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// Len reports the number of cached entries.
func (c *CachedProvider) Len() int {
	return c.cache.Len()
}

// Purge drops every cached vector.
func (c *CachedProvider) Purge() {
	c.cache.Purge()
}
