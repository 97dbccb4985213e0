package eventlog

import (
	"context"
	"log/slog"
)

// SlogSink writes each event as a structured log line. It is the
// default sink when no ClickHouse DSN is configured.
type SlogSink struct {
	log *slog.Logger
}

// NewSlogSink builds a sink over log. Defaults to slog.Default().
func NewSlogSink(log *slog.Logger) *SlogSink {
	if log == nil {
		log = slog.Default()
	}
	return &SlogSink{log: log}
}

func (s *SlogSink) WriteBatch(ctx context.Context, events []Event) error {
	for _, e := range events {
		s.log.InfoContext(ctx, "cache_event",
			slog.String("id", e.ID.String()),
			slog.String("store", e.Store),
			slog.String("op", e.Op),
			slog.String("result", e.Result),
			slog.Int64("latency_us", e.LatencyUS),
			slog.Time("created_at", e.CreatedAt),
		)
	}
	return nil
}

func (s *SlogSink) Close() error { return nil }
