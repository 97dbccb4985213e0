package llm

import (
	"context"

	"github.com/studyloop/tutor-cache/internal/cache"
)

// CachedClient puts the ai_response store in front of a completion
// client. Identical (prompt, temperature, max tokens) requests within
// the TTL are served from the cache without touching the provider.
type CachedClient struct {
	inner Client
	cache *cache.Manager
}

// NewCachedClient wraps inner with the manager's ai_response store.
func NewCachedClient(inner Client, m *cache.Manager) *CachedClient {
	return &CachedClient{inner: inner, cache: m}
}

func (c *CachedClient) Name() string { return c.inner.Name() }

// Complete returns the completion for req and whether it was served
// from the cache. Provider errors propagate and cache nothing.
func (c *CachedClient) Complete(ctx context.Context, req CompletionRequest) (string, bool, error) {
	if out, ok := c.cache.GetAIResponse(ctx, req.Prompt, req.Temperature, req.MaxTokens); ok {
		return out, true, nil
	}

	out, err := c.inner.Complete(ctx, req)
	if err != nil {
		return "", false, err
	}
	c.cache.SetAIResponse(ctx, req.Prompt, req.Temperature, req.MaxTokens, out, 0)
	return out, false, nil
}
