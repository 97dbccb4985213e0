package server

import (
	"encoding/json"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/studyloop/tutor-cache/internal/llm"
	"github.com/studyloop/tutor-cache/pkg/apierr"
)

type responsesRequest struct {
	Prompt      string  `json:"prompt"`
	System      string  `json:"system,omitempty"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type responsesResponse struct {
	Response string `json:"response"`
	Cached   bool   `json:"cached"`
}

func (s *Server) handleResponses(ctx *fasthttp.RequestCtx) {
	if s.completer == nil {
		apierr.WriteUnavailable(ctx, "no completion provider configured")
		return
	}
	if !s.allow(ctx, "responses") {
		return
	}

	var req responsesRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		apierr.WriteInvalidRequest(ctx, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		apierr.WriteInvalidRequest(ctx, "prompt is required")
		return
	}

	out, cached, err := s.completer.Complete(ctx, llm.CompletionRequest{
		Prompt:      req.Prompt,
		System:      req.System,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordProviderRequest("completion", "error")
		}
		apierr.WriteProviderError(ctx, err.Error())
		return
	}
	if s.metrics != nil && !cached {
		s.metrics.RecordProviderRequest("completion", "ok")
	}

	setCacheHeader(ctx, cached)
	writeJSON(ctx, responsesResponse{Response: out, Cached: cached})
}

type embeddingsRequest struct {
	Texts []string `json:"texts"`
}

type embeddingsResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Dimension  int         `json:"dimension"`
	CacheHits  int         `json:"cache_hits"`
}

func (s *Server) handleEmbeddings(ctx *fasthttp.RequestCtx) {
	if s.embedder == nil {
		apierr.WriteUnavailable(ctx, "no embedding provider configured")
		return
	}
	if !s.allow(ctx, "embeddings") {
		return
	}

	var req embeddingsRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		apierr.WriteInvalidRequest(ctx, "invalid JSON body")
		return
	}
	if len(req.Texts) == 0 {
		apierr.WriteInvalidRequest(ctx, "texts is required")
		return
	}
	for _, t := range req.Texts {
		if strings.TrimSpace(t) == "" {
			apierr.WriteInvalidRequest(ctx, "texts must be non-empty")
			return
		}
	}

	vectors, hits, err := s.embedder.EmbedBatchCached(ctx, req.Texts)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordProviderRequest("embedding", "error")
		}
		apierr.WriteProviderError(ctx, err.Error())
		return
	}
	if s.metrics != nil && hits < len(req.Texts) {
		s.metrics.RecordProviderRequest("embedding", "ok")
	}

	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}

	setCacheHeader(ctx, hits == len(req.Texts))
	writeJSON(ctx, embeddingsResponse{Embeddings: vectors, Dimension: dim, CacheHits: hits})
}

// allow applies the per-route rate limit. Writes the 429 itself and
// returns false when the request must not proceed.
func (s *Server) allow(ctx *fasthttp.RequestCtx, route string) bool {
	if s.limiter == nil {
		return true
	}
	allowed, _ := s.limiter.Allow(ctx, route)
	if s.metrics != nil {
		result := "allowed"
		if !allowed {
			result = "blocked"
		}
		s.metrics.RecordRateLimit(result)
	}
	if !allowed {
		apierr.WriteRateLimit(ctx)
		return false
	}
	return true
}

func setCacheHeader(ctx *fasthttp.RequestCtx, hit bool) {
	if hit {
		ctx.Response.Header.Set("X-Cache", "HIT")
		return
	}
	ctx.Response.Header.Set("X-Cache", "MISS")
}
