// Package cache implements the tutoring backend's two-tier cache: a set
// of bounded in-process TTL stores with true LRU eviction, an optional
// Redis distributed tier shared across replicas, and a Manager that
// composes both behind workload-specific accessors (AI responses, RAG
// query results, DB query results, embeddings, short-lived API
// responses).
//
// The read path prefers the distributed tier; the write path keeps both
// tiers warm. Caching here is a performance optimization, never a
// correctness dependency: every tier failure degrades to a cache miss
// and no cache error ever reaches a caller.
package cache

import "time"

// Recorder observes cache operations for metrics and analytics.
// Implementations must not block — they are called on the cache hot path.
type Recorder interface {
	RecordCacheOp(store, op, result string, latency time.Duration)
}

// RAGQuery identifies one retrieval-augmented-generation lookup. All
// fields participate in key derivation: two queries differing in any
// field cache independently.
type RAGQuery struct {
	Query   string
	UserID  string
	Mode    string
	TopK    int
	Filters map[string]string
}

// RAGResult is one retrieved chunk with its relevance score.
type RAGResult struct {
	DocumentID string  `json:"document_id"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
	Source     string  `json:"source,omitempty"`
}
