package cached

import (
	"context"
	"fmt"

	"github.com/studyloop/tutor-cache/internal/cache"
)

// Embedder produces vector embeddings for text. Identical text always
// embeds identically, which is what makes the cache safe.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// CachedEmbedder caches an inner embedder's vectors. Batch calls only
// forward the texts the cache has never seen and merge provider output
// with cached vectors in the original order.
type CachedEmbedder struct {
	inner Embedder
	cache *cache.Manager
}

// NewCachedEmbedder wraps inner with the manager's embedding store.
func NewCachedEmbedder(inner Embedder, m *cache.Manager) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: m}
}

// Embed returns the cached vector for text, computing and caching it on
// a miss.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := e.cache.GetEmbedding(ctx, text); ok {
		return vec, nil
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.SetEmbedding(ctx, text, vec, 0)
	return vec, nil
}

// EmbedBatch returns one vector per input text, in input order. Cached
// texts are served from the store; only the misses are sent to the
// provider, in their original relative order. A fully cached batch
// never touches the provider at all.
func (e *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, _, err := e.EmbedBatchCached(ctx, texts)
	return vectors, err
}

// EmbedBatchCached is EmbedBatch plus the number of inputs that were
// served from the cache.
func (e *CachedEmbedder) EmbedBatchCached(ctx context.Context, texts []string) ([][]float32, int, error) {
	vectors := make([][]float32, len(texts))

	var missing []int
	for i, text := range texts {
		if vec, ok := e.cache.GetEmbedding(ctx, text); ok {
			vectors[i] = vec
			continue
		}
		missing = append(missing, i)
	}
	hits := len(texts) - len(missing)
	if len(missing) == 0 {
		return vectors, hits, nil
	}

	missingTexts := make([]string, len(missing))
	for i, idx := range missing {
		missingTexts[i] = texts[idx]
	}

	computed, err := e.inner.EmbedBatch(ctx, missingTexts)
	if err != nil {
		return nil, 0, err
	}
	if len(computed) != len(missingTexts) {
		return nil, 0, fmt.Errorf("cached: embedder returned %d vectors for %d texts", len(computed), len(missingTexts))
	}

	for i, idx := range missing {
		vectors[idx] = computed[i]
		e.cache.SetEmbedding(ctx, texts[idx], computed[i], 0)
	}
	return vectors, hits, nil
}
