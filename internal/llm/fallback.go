package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Fallback tries each client in order until one completes. The chain
// order is the preference order: primary first, backups after.
type Fallback struct {
	clients []Client
	log     *slog.Logger
}

// NewFallback builds a chain over clients. Logger defaults to
// slog.Default().
func NewFallback(log *slog.Logger, clients ...Client) *Fallback {
	if log == nil {
		log = slog.Default()
	}
	return &Fallback{clients: clients, log: log}
}

func (f *Fallback) Name() string { return "fallback" }

// Complete returns the first successful completion. Each failure is
// logged and the next client tried; the joined errors are returned only
// when every client failed. Context cancellation stops the chain
// immediately.
func (f *Fallback) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if len(f.clients) == 0 {
		return "", ErrNoProviders
	}

	var errs []error
	for _, c := range f.clients {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		out, err := c.Complete(ctx, req)
		if err == nil {
			return out, nil
		}

		f.log.Warn("provider failed, trying next",
			slog.String("provider", c.Name()),
			slog.String("error", err.Error()),
		)
		errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
	}

	return "", fmt.Errorf("%w: %w", ErrNoProviders, errors.Join(errs...))
}
