package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/studyloop/tutor-cache/internal/cache"
)

// fakeClient returns a fixed response or error and counts calls.
type fakeClient struct {
	name  string
	out   string
	err   error
	calls int
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

// TestFallbackPrimaryWins verifies backups are never consulted when the
// primary succeeds.
func TestFallbackPrimaryWins(t *testing.T) {
	primary := &fakeClient{name: "primary", out: "from primary"}
	backup := &fakeClient{name: "backup", out: "from backup"}
	f := NewFallback(nil, primary, backup)

	out, err := f.Complete(context.Background(), CompletionRequest{Prompt: "p"})
	if err != nil || out != "from primary" {
		t.Fatalf("got (%q, %v)", out, err)
	}
	if backup.calls != 0 {
		t.Fatalf("backup should not have been called, got %d calls", backup.calls)
	}
}

// TestFallbackAdvancesOnFailure verifies the chain moves past a failing
// primary.
func TestFallbackAdvancesOnFailure(t *testing.T) {
	primary := &fakeClient{name: "primary", err: errors.New("rate limited")}
	backup := &fakeClient{name: "backup", out: "from backup"}
	f := NewFallback(nil, primary, backup)

	out, err := f.Complete(context.Background(), CompletionRequest{Prompt: "p"})
	if err != nil || out != "from backup" {
		t.Fatalf("got (%q, %v)", out, err)
	}
	if primary.calls != 1 || backup.calls != 1 {
		t.Fatalf("expected one call each, got %d and %d", primary.calls, backup.calls)
	}
}

// TestFallbackAllFail verifies an exhausted chain reports ErrNoProviders
// with every underlying error attached.
func TestFallbackAllFail(t *testing.T) {
	e1 := errors.New("quota")
	e2 := errors.New("timeout")
	f := NewFallback(nil,
		&fakeClient{name: "a", err: e1},
		&fakeClient{name: "b", err: e2},
	)

	_, err := f.Complete(context.Background(), CompletionRequest{Prompt: "p"})
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
	if !errors.Is(err, e1) || !errors.Is(err, e2) {
		t.Fatalf("expected both underlying errors in the chain, got %v", err)
	}
}

// TestFallbackEmptyChain verifies a chain with no clients fails fast.
func TestFallbackEmptyChain(t *testing.T) {
	f := NewFallback(nil)

	if _, err := f.Complete(context.Background(), CompletionRequest{}); !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
}

// TestFallbackStopsOnCancel verifies cancellation short-circuits the
// chain instead of burning through every backup.
func TestFallbackStopsOnCancel(t *testing.T) {
	backup := &fakeClient{name: "backup", out: "x"}
	f := NewFallback(nil, &fakeClient{name: "a", err: errors.New("down")}, backup)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.Complete(ctx, CompletionRequest{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if backup.calls != 0 {
		t.Fatal("cancelled chain must not reach the backup")
	}
}

// TestCachedClientServesRepeats verifies the second identical request
// skips the provider and is flagged as cached.
func TestCachedClientServesRepeats(t *testing.T) {
	inner := &fakeClient{name: "groq", out: "a function that calls itself"}
	c := NewCachedClient(inner, cache.NewManager(cache.ManagerOptions{}))
	ctx := context.Background()
	req := CompletionRequest{Prompt: "explain recursion", Temperature: 0.7, MaxTokens: 512}

	out, cached, err := c.Complete(ctx, req)
	if err != nil || cached || out != inner.out {
		t.Fatalf("first call: (%q, %v, %v)", out, cached, err)
	}

	out, cached, err = c.Complete(ctx, req)
	if err != nil || !cached || out != inner.out {
		t.Fatalf("second call: (%q, %v, %v)", out, cached, err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected 1 provider call, got %d", inner.calls)
	}
}

// TestCachedClientParameterSensitivity verifies temperature and token
// changes bypass the cached entry.
func TestCachedClientParameterSensitivity(t *testing.T) {
	inner := &fakeClient{name: "groq", out: "r"}
	c := NewCachedClient(inner, cache.NewManager(cache.ManagerOptions{}))
	ctx := context.Background()

	c.Complete(ctx, CompletionRequest{Prompt: "p", Temperature: 0.7, MaxTokens: 512})
	c.Complete(ctx, CompletionRequest{Prompt: "p", Temperature: 0.8, MaxTokens: 512})
	c.Complete(ctx, CompletionRequest{Prompt: "p", Temperature: 0.7, MaxTokens: 256})

	if inner.calls != 3 {
		t.Fatalf("each parameter set is its own entry, got %d calls", inner.calls)
	}
}

// TestCachedClientErrorNotCached verifies provider failures are never
// stored.
func TestCachedClientErrorNotCached(t *testing.T) {
	inner := &fakeClient{name: "groq", err: errors.New("down")}
	c := NewCachedClient(inner, cache.NewManager(cache.ManagerOptions{}))
	ctx := context.Background()
	req := CompletionRequest{Prompt: "p"}

	if _, _, err := c.Complete(ctx, req); err == nil {
		t.Fatal("expected provider error")
	}

	inner.err = nil
	inner.out = "recovered"
	out, cached, err := c.Complete(ctx, req)
	if err != nil || cached || out != "recovered" {
		t.Fatalf("retry should hit the provider: (%q, %v, %v)", out, cached, err)
	}
}
