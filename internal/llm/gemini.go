package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

const (
	geminiDefaultModel      = "gemini-2.0-flash"
	geminiDefaultEmbedModel = "text-embedding-004"
)

// Gemini serves completions and embeddings through the official GenAI
// SDK. It is the only provider in the chain that embeds.
type Gemini struct {
	model      string
	embedModel string
	client     *genai.Client
}

// GeminiOption configures a Gemini client.
type GeminiOption func(*geminiConfig)

type geminiConfig struct {
	model      string
	embedModel string
	baseURL    string
}

// WithGeminiModel overrides the default completion model.
func WithGeminiModel(model string) GeminiOption {
	return func(c *geminiConfig) { c.model = model }
}

// WithGeminiEmbedModel overrides the default embedding model.
func WithGeminiEmbedModel(model string) GeminiOption {
	return func(c *geminiConfig) { c.embedModel = model }
}

// WithGeminiBaseURL overrides the API base URL (useful for testing).
func WithGeminiBaseURL(u string) GeminiOption {
	return func(c *geminiConfig) { c.baseURL = u }
}

// NewGemini builds a Gemini client. apiKey must be non-empty.
func NewGemini(ctx context.Context, apiKey string, opts ...GeminiOption) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: no API key configured")
	}

	cfg := geminiConfig{model: geminiDefaultModel, embedModel: geminiDefaultEmbedModel}
	for _, o := range opts {
		o(&cfg)
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: requestTimeout},
	}
	if cfg.baseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.baseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	return &Gemini{model: cfg.model, embedModel: cfg.embedModel, client: client}, nil
}

func (g *Gemini) Name() string { return "gemini" }

// Complete sends one generation request and returns the concatenated
// candidate text.
func (g *Gemini) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	var cfg *genai.GenerateContentConfig
	if req.System != "" || req.Temperature > 0 || req.MaxTokens > 0 {
		cfg = &genai.GenerateContentConfig{}
		if req.System != "" {
			cfg.SystemInstruction = &genai.Content{
				Parts: []*genai.Part{{Text: req.System}},
			}
		}
		if req.Temperature > 0 {
			cfg.Temperature = genai.Ptr[float32](float32(req.Temperature))
		}
		if req.MaxTokens > 0 {
			cfg.MaxOutputTokens = int32(req.MaxTokens)
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", toGeminiError(err))
	}
	if resp == nil {
		return "", fmt.Errorf("gemini: empty response")
	}
	return resp.Text(), nil
}

// Embed returns the embedding vector for a single text.
func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds all texts in one EmbedContent call and returns one
// vector per input, in order.
func (g *Gemini) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.embedModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini: embed: %w", toGeminiError(err))
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini: embed: expected %d embeddings", len(texts))
	}

	vecs := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, fmt.Errorf("gemini: embed: nil embedding at index %d", i)
		}
		vecs[i] = emb.Values
	}
	return vecs, nil
}

func toGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{
			Provider:   "gemini",
			StatusCode: apiErr.Code,
			Message:    apiErr.Message,
		}
	}
	return err
}
