package embedding

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CacheStats represents cache statistics
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    uint64
	Misses  uint64
	HitRate float64
}

// CachedEmbedder memoizes vectors per text in an LRU cache with TTL.
// Repeated user queries skip the embedding model round trip.
type CachedEmbedder struct {
	next    Embedder
	entries *expirable.LRU[string, []float32]
	maxSize int
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// NewCachedEmbedder wraps next with a cache holding at most maxSize vectors.
// A ttl of zero keeps entries until they are evicted.
func NewCachedEmbedder(next Embedder, maxSize int, ttl time.Duration) *CachedEmbedder {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &CachedEmbedder{
		next:    next,
		entries: expirable.NewLRU[string, []float32](maxSize, nil, ttl),
		maxSize: maxSize,
	}
}

// Name returns the wrapped model name
func (c *CachedEmbedder) Name() string {
	return c.next.Name()
}

// Dimensions returns the wrapped vector length
func (c *CachedEmbedder) Dimensions() int {
	return c.next.Dimensions()
}

// Embed serves cached vectors and forwards only the misses
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		if vec, ok := c.entries.Get(text); ok {
			c.hits.Add(1)
			out[i] = vec
			continue
		}
		c.misses.Add(1)
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for j, vec := range vectors {
		out[missIdx[j]] = vec
		c.entries.Add(missTexts[j], vec)
	}
	return out, nil
}

// Clear removes all entries from the cache
func (c *CachedEmbedder) Clear() {
	c.entries.Purge()
}

// Stats returns cache statistics
func (c *CachedEmbedder) Stats() CacheStats {
	hits, misses := c.hits.Load(), c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return CacheStats{
		Size:    c.entries.Len(),
		MaxSize: c.maxSize,
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate,
	}
}
