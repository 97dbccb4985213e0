package cached

import (
	"context"
	"encoding/json"

	"golang.org/x/sync/singleflight"

	"github.com/studyloop/tutor-cache/internal/cache"
)

// QueryCache puts the db_query store in front of named database reads.
// Results are stored as raw JSON so callers on either side of the cache
// see the same bytes.
type QueryCache struct {
	cache *cache.Manager
	group singleflight.Group
}

// NewQueryCache builds a QueryCache on the manager's db_query store.
func NewQueryCache(m *cache.Manager) *QueryCache {
	return &QueryCache{cache: m}
}

// Do returns the cached result of the named query with args, running fn
// and caching its JSON encoding on a miss. Concurrent misses for the
// same (name, args) share one execution. Query errors propagate and
// cache nothing.
func (q *QueryCache) Do(ctx context.Context, name string, fn func(ctx context.Context) (any, error), args ...any) (json.RawMessage, error) {
	if data, ok := q.cache.GetDBQuery(ctx, name, args...); ok {
		return data, nil
	}

	key := cache.Key(cache.StoreDBQuery, append([]any{name}, args...), nil)
	res, err, _ := q.group.Do(key, func() (any, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		q.cache.SetDBQuery(ctx, name, data, 0, args...)
		return json.RawMessage(data), nil
	})
	if err != nil {
		return nil, err
	}
	return res.(json.RawMessage), nil
}

// Invalidate evicts the cached read for exactly (name, args). Writers
// call this after mutating the underlying rows.
func (q *QueryCache) Invalidate(ctx context.Context, name string, args ...any) {
	q.cache.InvalidateDBQuery(ctx, name, args...)
}
