package embedding

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/sync/errgroup"

	"mnemos/internal/logging"
)

// batchConcurrency bounds parallel backend calls during EmbedBatch.
const batchConcurrency = 4

// CachedEngine wraps an Engine with a ristretto result cache. The embedding
// collaborator is a rate-limited external service; caching keeps repeated
// consolidation of the same candidate text from burning quota.
type CachedEngine struct {
	inner Engine
	cache *ristretto.Cache
}

// NewCachedEngine wraps an engine with a cache holding up to maxEntries
// embeddings.
func NewCachedEngine(inner Engine, maxEntries int64) (*CachedEngine, error) {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &CachedEngine{inner: inner, cache: cache}, nil
}

// Embed returns the cached embedding for text, calling the backend on miss.
func (c *CachedEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.inner.Name() + "\x00" + text

	if v, ok := c.cache.Get(key); ok {
		if vec, ok := v.([]float32); ok {
			logging.EmbeddingDebug("Cache hit for text (len=%d)", len(text))
			return vec, nil
		}
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	// Cost 1 per entry; MaxCost is an entry count.
	c.cache.Set(key, vec, 1)
	return vec, nil
}

// EmbedBatch embeds texts with bounded concurrency, preserving input order.
func (c *CachedEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	for i, text := range texts {
		g.Go(func() error {
			vec, err := c.Embed(gctx, text)
			if err != nil {
				return fmt.Errorf("failed to embed text %d: %w", i, err)
			}
			vecs[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vecs, nil
}

// Dimensions returns the backend dimensionality.
func (c *CachedEngine) Dimensions() int {
	return c.inner.Dimensions()
}

// Name returns the backend name with a cache marker.
func (c *CachedEngine) Name() string {
	return c.inner.Name() + "+cache"
}

// Wait blocks until pending cache writes are applied. Intended for tests.
func (c *CachedEngine) Wait() {
	c.cache.Wait()
}

// Close releases cache resources.
func (c *CachedEngine) Close() {
	c.cache.Close()
}
