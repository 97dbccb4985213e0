package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openaiSDK "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	groqBaseURL      = "https://api.groq.com/openai/v1"
	groqDefaultModel = "llama-3.3-70b-versatile"
)

// Groq serves completions through Groq's OpenAI-compatible API.
type Groq struct {
	model  string
	client openaiSDK.Client
}

// GroqOption configures a Groq client.
type GroqOption func(*groqConfig)

type groqConfig struct {
	baseURL string
	model   string
}

// WithGroqBaseURL overrides the API base URL (useful for testing).
func WithGroqBaseURL(u string) GroqOption {
	return func(c *groqConfig) { c.baseURL = u }
}

// WithGroqModel overrides the default completion model.
func WithGroqModel(model string) GroqOption {
	return func(c *groqConfig) { c.model = model }
}

// NewGroq builds a Groq client. apiKey must be non-empty.
func NewGroq(apiKey string, opts ...GroqOption) (*Groq, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("groq: no API key configured")
	}

	cfg := groqConfig{baseURL: groqBaseURL, model: groqDefaultModel}
	for _, o := range opts {
		o(&cfg)
	}

	client := openaiSDK.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(cfg.baseURL),
		option.WithHTTPClient(&http.Client{Timeout: requestTimeout}),
	)

	return &Groq{model: cfg.model, client: client}, nil
}

func (g *Groq) Name() string { return "groq" }

// Complete sends one chat completion and returns the first choice's
// text.
func (g *Groq) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	msgs := make([]openaiSDK.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		msgs = append(msgs, openaiSDK.SystemMessage(req.System))
	}
	msgs = append(msgs, openaiSDK.UserMessage(req.Prompt))

	params := openaiSDK.ChatCompletionNewParams{
		Messages: msgs,
		Model:    g.model,
	}
	if req.Temperature != 0 {
		params.Temperature = openaiSDK.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openaiSDK.Int(int64(req.MaxTokens))
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("groq: %w", toGroqError(err))
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("groq: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// ProviderError is a structured upstream API error.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s (status=%d)", e.Provider, e.Message, e.StatusCode)
}

func (e *ProviderError) HTTPStatus() int { return e.StatusCode }

func toGroqError(err error) error {
	var apierr *openaiSDK.Error
	if errors.As(err, &apierr) {
		return &ProviderError{
			Provider:   "groq",
			StatusCode: apierr.StatusCode,
			Message:    apierr.Error(),
		}
	}
	return err
}
