package cached

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

// TestQueryCacheDo verifies the second identical read is served from
// the cache as the same JSON bytes.
func TestQueryCacheDo(t *testing.T) {
	q := NewQueryCache(newTestManager())
	ctx := context.Background()
	calls := 0

	fetch := func(ctx context.Context) (any, error) {
		calls++
		return map[string]any{"id": 1, "name": "alice"}, nil
	}

	first, err := q.Do(ctx, "profile", fetch, 1)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	second, err := q.Do(ctx, "profile", fetch, 1)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	if calls != 1 {
		t.Fatalf("expected 1 query execution, got %d", calls)
	}
	if string(first) != string(second) {
		t.Fatalf("cached bytes diverged: %s vs %s", second, first)
	}

	var decoded struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(second, &decoded); err != nil || decoded.Name != "alice" {
		t.Fatalf("cached payload unreadable: %v / %+v", err, decoded)
	}
}

// TestQueryCacheArgsSeparateEntries verifies each (name, args) pair is
// its own entry.
func TestQueryCacheArgsSeparateEntries(t *testing.T) {
	q := NewQueryCache(newTestManager())
	ctx := context.Background()
	calls := 0

	fetch := func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}

	q.Do(ctx, "profile", fetch, 1)
	q.Do(ctx, "profile", fetch, 2)
	q.Do(ctx, "sessions", fetch, 1)

	if calls != 3 {
		t.Fatalf("expected 3 executions for 3 distinct keys, got %d", calls)
	}
}

// TestQueryCacheInvalidate verifies invalidation is precise: only the
// named (name, args) entry recomputes.
func TestQueryCacheInvalidate(t *testing.T) {
	q := NewQueryCache(newTestManager())
	ctx := context.Background()
	calls := map[int]int{}

	fetchFor := func(user int) func(ctx context.Context) (any, error) {
		return func(ctx context.Context) (any, error) {
			calls[user]++
			return map[string]int{"user": user, "version": calls[user]}, nil
		}
	}

	q.Do(ctx, "profile", fetchFor(1), 1)
	q.Do(ctx, "profile", fetchFor(2), 2)

	q.Invalidate(ctx, "profile", 1)

	q.Do(ctx, "profile", fetchFor(1), 1)
	q.Do(ctx, "profile", fetchFor(2), 2)

	if calls[1] != 2 {
		t.Fatalf("invalidated entry should recompute, got %d executions", calls[1])
	}
	if calls[2] != 1 {
		t.Fatalf("sibling entry must stay cached, got %d executions", calls[2])
	}
}

// TestQueryCacheErrorPropagates verifies query failures surface and are
// never cached.
func TestQueryCacheErrorPropagates(t *testing.T) {
	q := NewQueryCache(newTestManager())
	ctx := context.Background()
	boom := errors.New("connection refused")
	calls := 0

	fetch := func(ctx context.Context) (any, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return "ok", nil
	}

	if _, err := q.Do(ctx, "profile", fetch, 1); !errors.Is(err, boom) {
		t.Fatalf("expected query error, got %v", err)
	}
	if _, err := q.Do(ctx, "profile", fetch, 1); err != nil {
		t.Fatalf("retry should recompute: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 executions, got %d", calls)
	}
}
