package cached

import (
	"context"
	"errors"
	"testing"

	"github.com/studyloop/tutor-cache/internal/cache"
)

// fakeRetriever counts calls and returns canned output.
type fakeRetriever struct {
	retrieveCalls int
	contextCalls  int
	indexCalls    int
	err           error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, q cache.RAGQuery) ([]cache.RAGResult, error) {
	f.retrieveCalls++
	if f.err != nil {
		return nil, f.err
	}
	return []cache.RAGResult{{DocumentID: "d-1", Content: "content for " + q.Query, Score: 0.9}}, nil
}

func (f *fakeRetriever) BuildContext(ctx context.Context, query, userID string, maxChars int) (string, error) {
	f.contextCalls++
	if f.err != nil {
		return "", f.err
	}
	return "context for " + query, nil
}

func (f *fakeRetriever) Index(ctx context.Context, docs []Document) error {
	f.indexCalls++
	return f.err
}

// TestRetrieveCaches verifies the second identical query skips the
// inner retriever.
func TestRetrieveCaches(t *testing.T) {
	inner := &fakeRetriever{}
	r := NewCachedRetriever(inner, newTestManager())
	ctx := context.Background()
	q := cache.RAGQuery{Query: "mitosis", UserID: "u-1", TopK: 5}

	first, err := r.Retrieve(ctx, q)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	second, err := r.Retrieve(ctx, q)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if inner.retrieveCalls != 1 {
		t.Fatalf("expected 1 inner call, got %d", inner.retrieveCalls)
	}
	if len(second) != len(first) || second[0].DocumentID != first[0].DocumentID {
		t.Fatalf("cached results diverged: %+v vs %+v", second, first)
	}
}

// TestRetrieveErrorPropagates verifies search failures are surfaced and
// never cached.
func TestRetrieveErrorPropagates(t *testing.T) {
	boom := errors.New("vector store down")
	inner := &fakeRetriever{err: boom}
	r := NewCachedRetriever(inner, newTestManager())
	ctx := context.Background()
	q := cache.RAGQuery{Query: "q", UserID: "u"}

	if _, err := r.Retrieve(ctx, q); !errors.Is(err, boom) {
		t.Fatalf("expected search error, got %v", err)
	}

	inner.err = nil
	if _, err := r.Retrieve(ctx, q); err != nil {
		t.Fatalf("recovered retrieve failed: %v", err)
	}
	if inner.retrieveCalls != 2 {
		t.Fatalf("failed call must not have cached: %d inner calls", inner.retrieveCalls)
	}
}

// TestBuildContextCaches verifies assembled contexts are cached per
// (query, user, budget).
func TestBuildContextCaches(t *testing.T) {
	inner := &fakeRetriever{}
	r := NewCachedRetriever(inner, newTestManager())
	ctx := context.Background()

	a, _ := r.BuildContext(ctx, "mitosis", "u-1", 2000)
	b, _ := r.BuildContext(ctx, "mitosis", "u-1", 2000)
	if a != b || inner.contextCalls != 1 {
		t.Fatalf("expected 1 inner call and identical contexts, got %d calls", inner.contextCalls)
	}

	// A different budget is a different cache entry.
	r.BuildContext(ctx, "mitosis", "u-1", 500)
	if inner.contextCalls != 2 {
		t.Fatalf("budget change should recompute, got %d calls", inner.contextCalls)
	}
}

// TestIndexInvalidates verifies indexing clears cached results so the
// next query re-ranks against the grown corpus.
func TestIndexInvalidates(t *testing.T) {
	inner := &fakeRetriever{}
	r := NewCachedRetriever(inner, newTestManager())
	ctx := context.Background()
	q := cache.RAGQuery{Query: "mitosis", UserID: "u-1"}

	r.Retrieve(ctx, q)
	r.BuildContext(ctx, "mitosis", "u-1", 2000)

	if err := r.Index(ctx, []Document{{ID: "d-new", Content: "anaphase"}}); err != nil {
		t.Fatalf("Index: %v", err)
	}

	r.Retrieve(ctx, q)
	r.BuildContext(ctx, "mitosis", "u-1", 2000)
	if inner.retrieveCalls != 2 || inner.contextCalls != 2 {
		t.Fatalf("indexing must invalidate both caches, got retrieve=%d context=%d",
			inner.retrieveCalls, inner.contextCalls)
	}
}

// TestIndexFailureKeepsCache verifies a failed indexing run leaves
// cached results intact.
func TestIndexFailureKeepsCache(t *testing.T) {
	inner := &fakeRetriever{}
	r := NewCachedRetriever(inner, newTestManager())
	ctx := context.Background()
	q := cache.RAGQuery{Query: "q", UserID: "u"}

	r.Retrieve(ctx, q)

	inner.err = errors.New("index write failed")
	if err := r.Index(ctx, nil); err == nil {
		t.Fatal("expected indexing error")
	}
	inner.err = nil

	r.Retrieve(ctx, q)
	if inner.retrieveCalls != 1 {
		t.Fatalf("failed indexing must not clear the cache, got %d inner calls", inner.retrieveCalls)
	}
}
