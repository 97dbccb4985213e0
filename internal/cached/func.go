// Package cached provides read-through wrappers that put the cache
// manager in front of expensive operations: arbitrary functions,
// retrieval pipelines, embedding providers and database queries. Each
// wrapper computes on a miss, stores the result, and collapses
// concurrent misses for the same key into a single computation.
package cached

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/studyloop/tutor-cache/internal/cache"
)

// Func caches the results of a single computation keyed by its
// arguments. Values round-trip through JSON in the manager's generic
// store, so V must be JSON-serializable.
type Func[V any] struct {
	cache  *cache.Manager
	prefix string
	ttl    time.Duration
	fn     func(ctx context.Context, args ...any) (V, error)
	group  singleflight.Group
}

// NewFunc wraps fn with read-through caching under the given key
// prefix. ttl <= 0 uses the generic store's default.
func NewFunc[V any](m *cache.Manager, prefix string, ttl time.Duration, fn func(ctx context.Context, args ...any) (V, error)) *Func[V] {
	return &Func[V]{cache: m, prefix: prefix, ttl: ttl, fn: fn}
}

// Call returns the cached result for args, computing and storing it on
// a miss. Concurrent callers with the same arguments share one
// computation. Computation errors propagate unchanged and cache
// nothing.
func (f *Func[V]) Call(ctx context.Context, args ...any) (V, error) {
	key := cache.Key(f.prefix, args, nil)

	if data, ok := f.cache.Get(ctx, key); ok {
		var v V
		if err := json.Unmarshal(data, &v); err == nil {
			return v, nil
		}
		// Stale encoding from an older build; recompute below.
		f.cache.Delete(ctx, key)
	}

	res, err, _ := f.group.Do(key, func() (any, error) {
		v, err := f.fn(ctx, args...)
		if err != nil {
			return v, err
		}
		if data, err := json.Marshal(v); err == nil {
			f.cache.Set(ctx, key, data, f.ttl)
		}
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Invalidate evicts the cached result for args so the next Call
// recomputes.
func (f *Func[V]) Invalidate(ctx context.Context, args ...any) {
	f.cache.Delete(ctx, cache.Key(f.prefix, args, nil))
}
