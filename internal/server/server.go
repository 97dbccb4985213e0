// Package server exposes the cache over HTTP: the /v1 serving routes
// that consumers hit and the /admin surface operators use to inspect
// and manage the stores.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"time"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"github.com/studyloop/tutor-cache/internal/cache"
	"github.com/studyloop/tutor-cache/internal/llm"
	"github.com/studyloop/tutor-cache/internal/metrics"
	"github.com/studyloop/tutor-cache/internal/ratelimit"
)

// Completer produces completions and reports whether they came from the
// cache.
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (string, bool, error)
}

// Embedder produces one vector per text and reports how many were
// served from the cache.
type Embedder interface {
	EmbedBatchCached(ctx context.Context, texts []string) ([][]float32, int, error)
}

// Options wires a Server. Cache is required; everything else degrades:
// nil Completer/Embedder turn the serving routes into 503s, nil Limiter
// disables rate limiting, nil Metrics disables the /metrics route.
type Options struct {
	Cache       *cache.Manager
	Completer   Completer
	Embedder    Embedder
	Limiter     *ratelimit.RPMLimiter
	Metrics     *metrics.Registry
	Logger      *slog.Logger
	CORSOrigins []string
	Version     string
}

// Server handles the HTTP surface.
type Server struct {
	cache       *cache.Manager
	completer   Completer
	embedder    Embedder
	limiter     *ratelimit.RPMLimiter
	metrics     *metrics.Registry
	log         *slog.Logger
	corsOrigins []string
	version     string

	httpSrv *fasthttp.Server
}

// New builds a Server from opts.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	s := &Server{
		cache:       opts.Cache,
		completer:   opts.Completer,
		embedder:    opts.Embedder,
		limiter:     opts.Limiter,
		metrics:     opts.Metrics,
		log:         opts.Logger,
		corsOrigins: opts.CORSOrigins,
		version:     opts.Version,
	}
	s.httpSrv = &fasthttp.Server{
		Handler:      s.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

// Handler builds the full route table with the middleware chain
// applied.
func (s *Server) Handler() fasthttp.RequestHandler {
	r := router.New()

	r.POST("/v1/responses", s.handleResponses)
	r.POST("/v1/embeddings", s.handleEmbeddings)

	r.GET("/admin/cache/stats", s.handleCacheStats)
	r.POST("/admin/cache/clear", s.handleCacheClear)
	r.POST("/admin/cache/cleanup", s.handleCacheCleanup)

	r.GET("/health", s.handleHealth)
	r.GET("/readiness", s.handleReadiness)

	if s.metrics != nil {
		r.GET("/metrics", s.metrics.Handler())
	}

	return applyMiddleware(r.Handler,
		s.recovery,
		requestID,
		timing,
		s.httpMetrics,
		corsHandler(s.corsOrigins),
		securityHeaders,
	)
}

// Start serves the handler on addr (e.g. ":8080") until the listener
// fails or Shutdown is called. Returns nil after a clean shutdown.
func (s *Server) Start(addr string) error {
	return s.httpSrv.ListenAndServe(addr)
}

// Serve serves the handler on an existing listener until it fails or
// Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpSrv.Serve(ln)
}

// Shutdown stops accepting new connections and waits for in-flight
// requests to finish, up to ctx's deadline. Start/Serve return once the
// shutdown completes.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.ShutdownWithContext(ctx)
}

func (s *Server) handleReadiness(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, map[string]string{"status": "ok"})
}

func writeJSON(ctx *fasthttp.RequestCtx, v any) {
	ctx.SetContentType("application/json")
	data, _ := json.Marshal(v)
	ctx.SetBody(data)
}
