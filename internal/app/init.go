package app

import (
	"context"
	"log/slog"

	"github.com/studyloop/tutor-cache/internal/cache"
	"github.com/studyloop/tutor-cache/internal/cached"
	"github.com/studyloop/tutor-cache/internal/eventlog"
	"github.com/studyloop/tutor-cache/internal/llm"
	"github.com/studyloop/tutor-cache/internal/metrics"
	"github.com/studyloop/tutor-cache/internal/ratelimit"
	"github.com/studyloop/tutor-cache/internal/server"
)

// initInfra establishes the distributed cache tier when configured.
// A failed Redis connection is a warning, not a startup failure: the
// cache degrades to local-only and the service still comes up.
func (a *App) initInfra(ctx context.Context) error {
	if !a.cfg.Cache.Distributed {
		return nil
	}

	a.log.Info("connecting to redis", slog.String("url", redactURL(a.cfg.Redis.URL)))

	rs, err := cache.NewRedisStoreFromURL(ctx, a.cfg.Redis.URL, a.log)
	if err != nil {
		a.log.Warn("distributed tier unavailable, running local-only",
			slog.String("error", err.Error()))
		return nil
	}
	a.redisStore = rs
	a.log.Info("redis connected")

	return nil
}

// initServices creates the metrics registry, the cache event log and
// the cache manager.
func (a *App) initServices(ctx context.Context) error {
	a.prom = metrics.New()
	a.prom.SetBuildInfo(a.version)

	// Cache events go to ClickHouse when configured, otherwise to the
	// structured log. A ClickHouse connection failure degrades the same
	// way Redis does: warn and fall back.
	var sink eventlog.Sink
	if a.cfg.ClickHouse.URL != "" {
		ch, err := eventlog.NewClickHouseSink(ctx, a.cfg.ClickHouse.URL)
		if err != nil {
			a.log.Warn("clickhouse sink unavailable, logging cache events via slog",
				slog.String("error", err.Error()))
		} else {
			a.log.Info("clickhouse event sink connected")
			sink = ch
		}
	}
	if sink == nil {
		sink = eventlog.NewSlogSink(a.log)
	}

	events, err := eventlog.New(a.baseCtx, sink)
	if err != nil {
		return err
	}
	a.events = events

	a.manager = cache.NewManager(cache.ManagerOptions{
		GenericMaxEntries: a.cfg.Cache.MaxEntries,
		GenericTTL:        a.cfg.Cache.TTL,
		Distributed:       a.redisStore,
		Logger:            a.log,
		Recorder:          multiRecorder{a.prom, a.events},
	})

	return nil
}

// initProviders builds the completion chain and the embedding provider
// from the configured API keys. No keys is a valid configuration: the
// serving routes answer 503 while the cache surfaces keep working.
func (a *App) initProviders(ctx context.Context) error {
	var clients []llm.Client

	if a.cfg.Groq.APIKey != "" {
		var opts []llm.GroqOption
		if a.cfg.Groq.Model != "" {
			opts = append(opts, llm.WithGroqModel(a.cfg.Groq.Model))
		}
		if a.cfg.Groq.BaseURL != "" {
			opts = append(opts, llm.WithGroqBaseURL(a.cfg.Groq.BaseURL))
		}
		groq, err := llm.NewGroq(a.cfg.Groq.APIKey, opts...)
		if err != nil {
			return err
		}
		clients = append(clients, groq)
	}

	if a.cfg.Gemini.APIKey != "" {
		var opts []llm.GeminiOption
		if a.cfg.Gemini.Model != "" {
			opts = append(opts, llm.WithGeminiModel(a.cfg.Gemini.Model))
		}
		if a.cfg.Gemini.EmbedModel != "" {
			opts = append(opts, llm.WithGeminiEmbedModel(a.cfg.Gemini.EmbedModel))
		}
		if a.cfg.Gemini.BaseURL != "" {
			opts = append(opts, llm.WithGeminiBaseURL(a.cfg.Gemini.BaseURL))
		}
		gemini, err := llm.NewGemini(ctx, a.cfg.Gemini.APIKey, opts...)
		if err != nil {
			return err
		}
		clients = append(clients, gemini)
		a.embedder = cached.NewCachedEmbedder(gemini, a.manager)
	}

	if len(clients) == 0 {
		a.log.Warn("no provider API keys configured; /v1 routes will return 503")
		return nil
	}

	names := make([]string, 0, len(clients))
	for _, c := range clients {
		names = append(names, c.Name())
	}
	a.log.Info("providers loaded", slog.Any("providers", names))

	a.completer = llm.NewCachedClient(llm.NewFallback(a.log, clients...), a.manager)

	return nil
}

// initServer wires the HTTP surface.
func (a *App) initServer(_ context.Context) error {
	var limiter *ratelimit.RPMLimiter
	if a.redisStore != nil && a.cfg.RateLimit.RPMLimit > 0 {
		limiter = ratelimit.NewRPMLimiter(a.redisStore.Client(), a.cfg.RateLimit.RPMLimit)
		a.log.Info("rate limiting enabled", slog.Int("rpm_limit", a.cfg.RateLimit.RPMLimit))
	}

	a.srv = server.New(server.Options{
		Cache:       a.manager,
		Completer:   a.completer,
		Embedder:    a.embedder,
		Limiter:     limiter,
		Metrics:     a.prom,
		Logger:      a.log,
		CORSOrigins: a.cfg.CORSOrigins,
		Version:     a.version,
	})

	return nil
}
