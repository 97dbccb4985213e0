package cached

import (
	"context"

	"github.com/studyloop/tutor-cache/internal/cache"
)

// Document is a unit of content handed to a retriever for indexing.
type Document struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Retriever is the retrieval pipeline being cached: vector search plus
// context assembly over indexed study material.
type Retriever interface {
	// Retrieve runs the search for q and returns scored results.
	Retrieve(ctx context.Context, q cache.RAGQuery) ([]cache.RAGResult, error)

	// BuildContext assembles retrieved content into a prompt context
	// string no longer than maxChars.
	BuildContext(ctx context.Context, query, userID string, maxChars int) (string, error)

	// Index adds documents to the searchable corpus.
	Index(ctx context.Context, docs []Document) error
}

// CachedRetriever caches an inner retriever's results and assembled
// contexts, and invalidates both whenever the corpus changes: any
// previously cached result set might rank differently after indexing.
type CachedRetriever struct {
	inner Retriever
	cache *cache.Manager
}

// NewCachedRetriever wraps inner with the manager's RAG stores.
func NewCachedRetriever(inner Retriever, m *cache.Manager) *CachedRetriever {
	return &CachedRetriever{inner: inner, cache: m}
}

// Retrieve returns cached results for q when present, otherwise runs
// the inner retriever and caches its output. Search errors propagate
// and cache nothing.
func (r *CachedRetriever) Retrieve(ctx context.Context, q cache.RAGQuery) ([]cache.RAGResult, error) {
	if results, ok := r.cache.GetRAGResults(ctx, q); ok {
		return results, nil
	}

	results, err := r.inner.Retrieve(ctx, q)
	if err != nil {
		return nil, err
	}
	r.cache.SetRAGResults(ctx, q, results, 0)
	return results, nil
}

// BuildContext returns a cached context string when present, otherwise
// assembles and caches one.
func (r *CachedRetriever) BuildContext(ctx context.Context, query, userID string, maxChars int) (string, error) {
	if s, ok := r.cache.GetRAGContext(ctx, query, userID, maxChars); ok {
		return s, nil
	}

	s, err := r.inner.BuildContext(ctx, query, userID, maxChars)
	if err != nil {
		return "", err
	}
	r.cache.SetRAGContext(ctx, query, userID, maxChars, s)
	return s, nil
}

// Index delegates to the inner retriever and, on success, clears every
// cached result set and context string in both tiers.
func (r *CachedRetriever) Index(ctx context.Context, docs []Document) error {
	if err := r.inner.Index(ctx, docs); err != nil {
		return err
	}
	r.cache.ClearRAGResults(ctx)
	return nil
}
