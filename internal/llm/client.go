// Package llm holds the completion and embedding providers the tutoring
// backend generates content with, plus the fallback chain and the cache
// wrapper that sits in front of them.
package llm

import (
	"context"
	"errors"
	"time"
)

// requestTimeout bounds a single provider HTTP call.
const requestTimeout = 60 * time.Second

// ErrNoProviders is returned when a chain is built with no clients or
// every client in it failed.
var ErrNoProviders = errors.New("llm: no providers available")

// CompletionRequest describes one tutoring completion.
type CompletionRequest struct {
	Prompt      string  `json:"prompt"`
	System      string  `json:"system,omitempty"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// Client produces completions. Implementations wrap one upstream
// provider each.
type Client interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Embedder produces embedding vectors. Satisfied by the Gemini client;
// the cached layer wraps it transparently.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
