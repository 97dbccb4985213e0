package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Store names, also used as key-derivation prefixes so that every
// distributed key self-identifies its workload.
const (
	StoreGeneric     = "generic"
	StoreAIResponse  = "ai_response"
	StoreRAGResults  = "rag_results"
	StoreDBQuery     = "db_query"
	StoreEmbedding   = "embedding"
	StoreAPIResponse = "api_response"

	// RAG context strings live in the generic store under their own
	// prefix so re-indexing can invalidate them without touching
	// unrelated generic entries.
	prefixRAGContext = "rag_context"
)

// Per-workload capacities and default TTLs, tuned to each workload's
// churn and recomputation cost: LLM responses are expensive and stable,
// DB rows mutate constantly, embeddings are deterministic, API responses
// only need short-window deduplication.
const (
	aiResponseMaxSize = 1000
	aiResponseTTL     = time.Hour

	ragResultsMaxSize = 500
	ragResultsTTL     = 30 * time.Minute

	dbQueryMaxSize = 2000
	dbQueryTTL     = 5 * time.Minute

	embeddingMaxSize = 5000
	embeddingTTL     = 2 * time.Hour

	apiResponseMaxSize = 1000
	apiResponseTTL     = time.Minute
)

// ManagerStats is the nested statistics structure exposed to operators.
type ManagerStats struct {
	DistributedActive bool             `json:"distributed_active"`
	Stores            map[string]Stats `json:"stores"`
	Distributed       *RedisStats      `json:"distributed,omitempty"`
}

// ManagerOptions configures the tunable parts of a Manager. The
// specialized stores use fixed per-workload parameters; only the generic
// store is externally configurable.
type ManagerOptions struct {
	// GenericMaxEntries bounds the generic store. Default 1000.
	GenericMaxEntries int

	// GenericTTL is the generic store's default TTL. Default 1h.
	GenericTTL time.Duration

	// Distributed is the shared Redis tier; nil runs local-only.
	Distributed *RedisStore

	// Logger for cache-tier warnings. Defaults to slog.Default().
	Logger *slog.Logger

	// Recorder receives one event per cache operation; nil disables.
	Recorder Recorder
}

// Manager is the single entry point consumers use instead of talking to
// either tier directly. It owns zero-or-one distributed tier and six
// independently bounded local stores — exhausting one store's capacity
// never evicts entries from another.
//
// Reads query the distributed tier first (authoritative across
// replicas), then fall back to the local store. Writes go to both tiers
// so this process keeps a warm local copy even if Redis becomes briefly
// unreachable.
type Manager struct {
	distributed *RedisStore
	log         *slog.Logger
	recorder    Recorder

	generic    *Store[[]byte]
	ai         *Store[string]
	rag        *Store[[]RAGResult]
	db         *Store[json.RawMessage]
	embeddings *Store[[]float32]
	api        *Store[json.RawMessage]
}

// NewManager builds a Manager with one tuned store per workload.
func NewManager(opts ManagerOptions) *Manager {
	if opts.GenericMaxEntries <= 0 {
		opts.GenericMaxEntries = 1000
	}
	if opts.GenericTTL <= 0 {
		opts.GenericTTL = time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Manager{
		distributed: opts.Distributed,
		log:         opts.Logger,
		recorder:    opts.Recorder,

		generic:    NewStore[[]byte](opts.GenericMaxEntries, opts.GenericTTL),
		ai:         NewStore[string](aiResponseMaxSize, aiResponseTTL),
		rag:        NewStore[[]RAGResult](ragResultsMaxSize, ragResultsTTL),
		db:         NewStore[json.RawMessage](dbQueryMaxSize, dbQueryTTL),
		embeddings: NewStore[[]float32](embeddingMaxSize, embeddingTTL),
		api:        NewStore[json.RawMessage](apiResponseMaxSize, apiResponseTTL),
	}
}

// DistributedActive reports whether the shared Redis tier is wired in.
func (m *Manager) DistributedActive() bool { return m.distributed != nil }

// ── AI responses ─────────────────────────────────────────────────────────────

func aiResponseKey(prompt string, temperature float64, maxTokens int) string {
	// The temperature participates unquantized: JSON marshaling of a
	// float64 is deterministic, and rounding here would alias nearby
	// temperatures onto one key.
	return Key(StoreAIResponse, []any{prompt}, map[string]any{
		"temperature": temperature,
		"max_tokens":  maxTokens,
	})
}

// GetAIResponse returns a cached LLM completion for the exact
// (prompt, temperature, max tokens) triple.
func (m *Manager) GetAIResponse(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, bool) {
	start := time.Now()
	key := aiResponseKey(prompt, temperature, maxTokens)

	if m.distributed != nil {
		if data, ok := m.distributed.Get(ctx, key); ok {
			m.record(StoreAIResponse, "get", "hit", start)
			return string(data), true
		}
	}

	v, ok := m.ai.Get(key)
	m.record(StoreAIResponse, "get", hitOrMiss(ok), start)
	return v, ok
}

// SetAIResponse caches an LLM completion in both tiers. ttl <= 0 uses
// the workload default (1h).
func (m *Manager) SetAIResponse(ctx context.Context, prompt string, temperature float64, maxTokens int, response string, ttl time.Duration) {
	start := time.Now()
	key := aiResponseKey(prompt, temperature, maxTokens)
	if ttl <= 0 {
		ttl = aiResponseTTL
	}

	if m.distributed != nil {
		m.distributed.Set(ctx, key, []byte(response), ttl)
	}
	m.ai.SetTTL(key, response, ttl)
	m.record(StoreAIResponse, "set", "ok", start)
}

// ── RAG query results ────────────────────────────────────────────────────────

func ragResultsKey(q RAGQuery) string {
	return Key(StoreRAGResults, []any{q.Query}, map[string]any{
		"user":    q.UserID,
		"mode":    q.Mode,
		"top_k":   q.TopK,
		"filters": q.Filters,
	})
}

// GetRAGResults returns cached retrieval results for q.
func (m *Manager) GetRAGResults(ctx context.Context, q RAGQuery) ([]RAGResult, bool) {
	start := time.Now()
	key := ragResultsKey(q)

	if m.distributed != nil {
		if data, ok := m.distributed.Get(ctx, key); ok {
			var results []RAGResult
			if err := json.Unmarshal(data, &results); err == nil {
				m.record(StoreRAGResults, "get", "hit", start)
				return results, true
			}
			// A peer wrote something this version cannot read; drop it.
			m.distributed.Delete(ctx, key)
		}
	}

	v, ok := m.rag.Get(key)
	m.record(StoreRAGResults, "get", hitOrMiss(ok), start)
	return v, ok
}

// SetRAGResults caches retrieval results for q. ttl <= 0 uses the
// workload default (30m) — retrieval results go stale as new content is
// indexed.
func (m *Manager) SetRAGResults(ctx context.Context, q RAGQuery, results []RAGResult, ttl time.Duration) {
	start := time.Now()
	key := ragResultsKey(q)
	if ttl <= 0 {
		ttl = ragResultsTTL
	}

	if m.distributed != nil {
		if data, err := json.Marshal(results); err == nil {
			m.distributed.Set(ctx, key, data, ttl)
		}
	}
	m.rag.SetTTL(key, results, ttl)
	m.record(StoreRAGResults, "set", "ok", start)
}

// ClearRAGResults drops every cached retrieval result and context
// string, in both tiers. Called after new content is indexed, since any
// previously cached result set might now rank differently.
func (m *Manager) ClearRAGResults(ctx context.Context) {
	m.rag.Clear()
	m.generic.DeletePrefix(prefixRAGContext + ":")
	if m.distributed != nil {
		m.distributed.ClearPrefix(ctx, StoreRAGResults)
		m.distributed.ClearPrefix(ctx, prefixRAGContext)
	}
}

// ── RAG context strings ──────────────────────────────────────────────────────

func ragContextKey(query, userID string, maxChars int) string {
	return Key(prefixRAGContext, []any{query}, map[string]any{
		"user":      userID,
		"max_chars": maxChars,
	})
}

// GetRAGContext returns a cached assembled context string.
func (m *Manager) GetRAGContext(ctx context.Context, query, userID string, maxChars int) (string, bool) {
	start := time.Now()
	key := ragContextKey(query, userID, maxChars)

	if m.distributed != nil {
		if data, ok := m.distributed.Get(ctx, key); ok {
			m.record(StoreGeneric, "get", "hit", start)
			return string(data), true
		}
	}

	data, ok := m.generic.Get(key)
	m.record(StoreGeneric, "get", hitOrMiss(ok), start)
	return string(data), ok
}

// SetRAGContext caches an assembled context string with the RAG-results
// TTL, so contexts and the result sets they were built from age together.
func (m *Manager) SetRAGContext(ctx context.Context, query, userID string, maxChars int, contextStr string) {
	start := time.Now()
	key := ragContextKey(query, userID, maxChars)

	if m.distributed != nil {
		m.distributed.Set(ctx, key, []byte(contextStr), ragResultsTTL)
	}
	m.generic.SetTTL(key, []byte(contextStr), ragResultsTTL)
	m.record(StoreGeneric, "set", "ok", start)
}

// ── DB query results ─────────────────────────────────────────────────────────

func dbQueryKey(name string, args []any) string {
	return Key(StoreDBQuery, append([]any{name}, args...), nil)
}

// GetDBQuery returns the cached result of the named query with the given
// arguments.
func (m *Manager) GetDBQuery(ctx context.Context, name string, args ...any) (json.RawMessage, bool) {
	start := time.Now()
	key := dbQueryKey(name, args)

	if m.distributed != nil {
		if data, ok := m.distributed.Get(ctx, key); ok {
			m.record(StoreDBQuery, "get", "hit", start)
			return json.RawMessage(data), true
		}
	}

	v, ok := m.db.Get(key)
	m.record(StoreDBQuery, "get", hitOrMiss(ok), start)
	return v, ok
}

// SetDBQuery caches the result of the named query. ttl <= 0 uses the
// workload default (5m) — short, because the underlying rows mutate
// frequently.
func (m *Manager) SetDBQuery(ctx context.Context, name string, result json.RawMessage, ttl time.Duration, args ...any) {
	start := time.Now()
	key := dbQueryKey(name, args)
	if ttl <= 0 {
		ttl = dbQueryTTL
	}

	if m.distributed != nil {
		m.distributed.Set(ctx, key, result, ttl)
	}
	m.db.SetTTL(key, result, ttl)
	m.record(StoreDBQuery, "set", "ok", start)
}

// InvalidateDBQuery evicts exactly the cached read identified by the
// same (name, args) used to populate it, in both tiers. A writer calls
// this after a mutation so the next read recomputes, without disturbing
// unrelated cached queries.
func (m *Manager) InvalidateDBQuery(ctx context.Context, name string, args ...any) {
	start := time.Now()
	key := dbQueryKey(name, args)

	if m.distributed != nil {
		m.distributed.Delete(ctx, key)
	}
	m.db.Delete(key)
	m.record(StoreDBQuery, "delete", "ok", start)
}

// ── Embeddings ───────────────────────────────────────────────────────────────

func embeddingKey(text string) string {
	return Key(StoreEmbedding, []any{text}, nil)
}

// GetEmbedding returns the cached embedding vector for text. Embeddings
// are keyed on the raw text alone: identical text always embeds
// identically.
func (m *Manager) GetEmbedding(ctx context.Context, text string) ([]float32, bool) {
	start := time.Now()
	key := embeddingKey(text)

	if m.distributed != nil {
		if data, ok := m.distributed.Get(ctx, key); ok {
			vec, err := decodeEmbedding(data)
			if err == nil {
				m.record(StoreEmbedding, "get", "hit", start)
				return vec, true
			}
			m.log.Warn("dropping undecodable cached embedding", slog.String("error", err.Error()))
			m.distributed.Delete(ctx, key)
		}
	}

	v, ok := m.embeddings.Get(key)
	m.record(StoreEmbedding, "get", hitOrMiss(ok), start)
	return v, ok
}

// SetEmbedding caches an embedding vector. ttl <= 0 uses the workload
// default (2h) — embeddings are deterministic and expensive, so a long
// TTL is safe.
func (m *Manager) SetEmbedding(ctx context.Context, text string, vec []float32, ttl time.Duration) {
	start := time.Now()
	key := embeddingKey(text)
	if ttl <= 0 {
		ttl = embeddingTTL
	}

	if m.distributed != nil {
		m.distributed.Set(ctx, key, encodeEmbedding(vec), ttl)
	}
	m.embeddings.SetTTL(key, vec, ttl)
	m.record(StoreEmbedding, "set", "ok", start)
}

// ── API responses ────────────────────────────────────────────────────────────

func apiResponseKey(endpoint string, args []any) string {
	return Key(StoreAPIResponse, append([]any{endpoint}, args...), nil)
}

// GetAPIResponse returns a recently cached response for the named
// endpoint and arguments.
func (m *Manager) GetAPIResponse(ctx context.Context, endpoint string, args ...any) (json.RawMessage, bool) {
	start := time.Now()
	key := apiResponseKey(endpoint, args)

	if m.distributed != nil {
		if data, ok := m.distributed.Get(ctx, key); ok {
			m.record(StoreAPIResponse, "get", "hit", start)
			return json.RawMessage(data), true
		}
	}

	v, ok := m.api.Get(key)
	m.record(StoreAPIResponse, "get", hitOrMiss(ok), start)
	return v, ok
}

// SetAPIResponse caches an endpoint response. ttl <= 0 uses the workload
// default (60s) — this store deduplicates near-simultaneous identical
// requests rather than caching long-term.
func (m *Manager) SetAPIResponse(ctx context.Context, endpoint string, response json.RawMessage, ttl time.Duration, args ...any) {
	start := time.Now()
	key := apiResponseKey(endpoint, args)
	if ttl <= 0 {
		ttl = apiResponseTTL
	}

	if m.distributed != nil {
		m.distributed.Set(ctx, key, response, ttl)
	}
	m.api.SetTTL(key, response, ttl)
	m.record(StoreAPIResponse, "set", "ok", start)
}

// ── Generic access ───────────────────────────────────────────────────────────

// Get reads a raw entry by literal key, bypassing workload key
// derivation.
func (m *Manager) Get(ctx context.Context, key string) ([]byte, bool) {
	start := time.Now()

	if m.distributed != nil {
		if data, ok := m.distributed.Get(ctx, key); ok {
			m.record(StoreGeneric, "get", "hit", start)
			return data, true
		}
	}

	v, ok := m.generic.Get(key)
	m.record(StoreGeneric, "get", hitOrMiss(ok), start)
	return v, ok
}

// Set writes a raw entry by literal key to both tiers. ttl <= 0 uses the
// generic store's default.
func (m *Manager) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	start := time.Now()
	if ttl <= 0 {
		ttl = m.generic.defaultTTL
	}

	if m.distributed != nil {
		m.distributed.Set(ctx, key, value, ttl)
	}
	m.generic.SetTTL(key, value, ttl)
	m.record(StoreGeneric, "set", "ok", start)
}

// Delete removes a raw entry from both tiers.
func (m *Manager) Delete(ctx context.Context, key string) {
	start := time.Now()

	if m.distributed != nil {
		m.distributed.Delete(ctx, key)
	}
	m.generic.Delete(key)
	m.record(StoreGeneric, "delete", "ok", start)
}

// ── Bulk operations ──────────────────────────────────────────────────────────

// ClearAll empties the distributed tier (when present) and every local
// store. Lifetime counters survive, by design.
func (m *Manager) ClearAll(ctx context.Context) {
	if m.distributed != nil {
		m.distributed.Clear(ctx)
	}
	for _, s := range m.clearables() {
		s.clear()
	}
}

// ClearStore empties one named local store and the matching workload
// keys in the distributed tier. Clearing the generic store only touches
// the local tier: its distributed keys are caller-chosen and cannot be
// enumerated by workload.
func (m *Manager) ClearStore(ctx context.Context, name string) error {
	for _, s := range m.clearables() {
		if s.name != name {
			continue
		}
		s.clear()
		if m.distributed != nil && name != StoreGeneric {
			m.distributed.ClearPrefix(ctx, name)
		}
		return nil
	}
	return fmt.Errorf("cache: unknown store %q", name)
}

// CleanupExpired sweeps every local store and returns the number of
// entries removed per store. The distributed tier expires its own keys.
func (m *Manager) CleanupExpired() map[string]int {
	removed := make(map[string]int, 6)
	for _, s := range m.clearables() {
		removed[s.name] = s.cleanup()
	}
	return removed
}

// Stats returns the nested statistics structure: per-store local stats
// plus the distributed tier's counters when active.
func (m *Manager) Stats() ManagerStats {
	stores := map[string]Stats{
		StoreGeneric:     m.generic.Stats(),
		StoreAIResponse:  m.ai.Stats(),
		StoreRAGResults:  m.rag.Stats(),
		StoreDBQuery:     m.db.Stats(),
		StoreEmbedding:   m.embeddings.Stats(),
		StoreAPIResponse: m.api.Stats(),
	}

	ms := ManagerStats{
		DistributedActive: m.distributed != nil,
		Stores:            stores,
	}
	if m.distributed != nil {
		rs := m.distributed.Stats()
		ms.Distributed = &rs
	}
	return ms
}

// ── internals ────────────────────────────────────────────────────────────────

// storeOps erases the per-store value type for bulk operations.
type storeOps struct {
	name    string
	clear   func()
	cleanup func() int
}

func (m *Manager) clearables() []storeOps {
	return []storeOps{
		{StoreGeneric, m.generic.Clear, m.generic.CleanupExpired},
		{StoreAIResponse, m.ai.Clear, m.ai.CleanupExpired},
		{StoreRAGResults, m.rag.Clear, m.rag.CleanupExpired},
		{StoreDBQuery, m.db.Clear, m.db.CleanupExpired},
		{StoreEmbedding, m.embeddings.Clear, m.embeddings.CleanupExpired},
		{StoreAPIResponse, m.api.Clear, m.api.CleanupExpired},
	}
}

func (m *Manager) record(store, op, result string, start time.Time) {
	if m.recorder != nil {
		m.recorder.RecordCacheOp(store, op, result, time.Since(start))
	}
}

func hitOrMiss(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
