// Package app wires up all subsystems and owns the application lifecycle.
//
// Startup order:
//  1. initInfra    — external connections (Redis, ClickHouse when configured)
//  2. initServices — metrics registry, event log, cache manager
//  3. initProviders — LLM provider clients and cache wrappers
//  4. initServer   — HTTP surface
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/studyloop/tutor-cache/internal/cache"
	"github.com/studyloop/tutor-cache/internal/config"
	"github.com/studyloop/tutor-cache/internal/eventlog"
	"github.com/studyloop/tutor-cache/internal/metrics"
	"github.com/studyloop/tutor-cache/internal/server"
)

const (
	statsInterval   = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

// App owns all long-lived resources and exposes Run / Close.
type App struct {
	version string
	cfg     *config.Config
	baseCtx context.Context
	log     *slog.Logger

	// Optional external connections — nil when not configured or when
	// the connection failed and the cache degraded to local-only.
	redisStore *cache.RedisStore

	events  *eventlog.Logger
	manager *cache.Manager
	prom    *metrics.Registry

	completer server.Completer
	embedder  server.Embedder
	srv       *server.Server
}

// New initialises all subsystems and returns a ready-to-run App.
// All resources allocated here are released by Close.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger, version string) (*App, error) {
	if ctx == nil {
		return nil, fmt.Errorf("app: context must not be nil")
	}

	a := &App{cfg: cfg, version: version, baseCtx: ctx, log: log}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"infra", a.initInfra},
		{"services", a.initServices},
		{"providers", a.initProviders},
		{"server", a.initServer},
	}

	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("app: init %s: %w", s.name, err)
		}
	}

	return a, nil
}

// Run starts the HTTP server and the maintenance loops, blocking until
// ctx is cancelled or an error occurs. It closes the app gracefully
// when returning.
func (a *App) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", a.cfg.Port)

	a.log.Info("starting cache service",
		slog.String("version", a.version),
		slog.String("addr", addr),
		slog.Bool("distributed", a.manager.DistributedActive()),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.srv.Start(addr)
	})

	g.Go(func() error {
		a.cleanupLoop(gctx)
		return nil
	})

	g.Go(func() error {
		a.statsLoop(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		// Stop the listener first so Start returns and g.Wait can
		// complete; in-flight requests get shutdownTimeout to drain.
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.srv.Shutdown(sctx); err != nil {
			a.log.Warn("http shutdown error", slog.String("error", err.Error()))
		}

		a.Close()
		return nil
	})

	return g.Wait()
}

// Close releases all resources in reverse-init order. Safe to call
// multiple times and from multiple goroutines.
func (a *App) Close() {
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.log.Error("event log close error", slog.String("error", err.Error()))
		}
		a.events = nil
	}
	if a.redisStore != nil {
		if err := a.redisStore.Close(); err != nil {
			a.log.Error("redis close error", slog.String("error", err.Error()))
		}
		a.redisStore = nil
	}
}

// cleanupLoop sweeps expired local entries on the configured interval.
func (a *App) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Cache.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := a.manager.CleanupExpired()
			total := 0
			for store, n := range removed {
				a.prom.RecordCleanup(store, n)
				total += n
			}
			if total > 0 {
				a.log.Debug("expired entries swept", slog.Int("removed", total))
			}
		}
	}
}

// statsLoop publishes store gauges to Prometheus.
func (a *App) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := a.manager.Stats()
			for name, ss := range st.Stores {
				a.prom.SetStoreGauges(name, ss.Size, ss.HitRatePercent, ss.Evictions)
			}
			if st.Distributed != nil {
				a.prom.SetDistributedErrors(st.Distributed.Errors)
			}
			if a.events != nil {
				a.prom.SetEventlogDropped(a.events.DroppedEvents())
			}
		}
	}
}

// multiRecorder fans cache events out to every registered recorder.
type multiRecorder []cache.Recorder

func (m multiRecorder) RecordCacheOp(store, op, result string, latency time.Duration) {
	for _, r := range m {
		r.RecordCacheOp(store, op, result, latency)
	}
}

// redactURL replaces the userinfo portion of a URL with "***" for safe logging.
// e.g. "redis://:secret@localhost:6379" → "redis://***@localhost:6379"
func redactURL(raw string) string {
	for i, c := range raw {
		if c == '@' {
			// Find the scheme end ("://") and keep only scheme + "***" + @host.
			for j := i - 1; j >= 0; j-- {
				if j+2 < len(raw) && raw[j:j+3] == "://" {
					return raw[:j+3] + "***" + raw[i:]
				}
			}
			return "***" + raw[i:]
		}
	}
	return raw
}
