// Package metrics provides a Prometheus metrics registry for the cache
// service.
//
// All metrics are scoped to a private registry (not the global default)
// so they don't interfere with host-level metrics when embedded in other
// applications. The /metrics HTTP handler is exposed via Handler().
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Registry holds all exported metrics.
type Registry struct {
	reg *prometheus.Registry

	// tutorcache_inflight_requests
	inFlight prometheus.Gauge

	// tutorcache_http_requests_total{route,status}
	httpRequestsTotal *prometheus.CounterVec

	// tutorcache_http_request_duration_seconds{route}
	httpDuration *prometheus.HistogramVec

	// tutorcache_cache_operations_total{store,op,result}
	cacheOps *prometheus.CounterVec

	// tutorcache_cache_operation_duration_seconds{store,op}
	cacheOpDuration *prometheus.HistogramVec

	// tutorcache_store_entries{store}
	storeEntries *prometheus.GaugeVec

	// tutorcache_store_hit_rate_percent{store}
	storeHitRate *prometheus.GaugeVec

	// tutorcache_store_evictions_total{store} — mirrored from store counters
	storeEvictions *prometheus.GaugeVec

	// tutorcache_distributed_errors_total
	distributedErrors prometheus.Gauge

	// tutorcache_cleanup_removed_total{store}
	cleanupRemoved *prometheus.CounterVec

	// tutorcache_provider_requests_total{provider,result}
	providerRequests *prometheus.CounterVec

	// tutorcache_ratelimit_total{result}
	rateLimitTotal *prometheus.CounterVec

	// tutorcache_eventlog_dropped_total
	eventlogDropped prometheus.Gauge

	// tutorcache_build_info{version}
	buildInfo *prometheus.GaugeVec

	metricsHandler fasthttp.RequestHandler
}

func New() *Registry {
	reg := prometheus.NewRegistry()

	// Baseline runtime metrics even with a private registry.
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	r := &Registry{
		reg: reg,

		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tutorcache_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tutorcache_http_requests_total",
				Help: "Total number of HTTP requests handled",
			},
			[]string{"route", "status"},
		),

		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tutorcache_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"route"},
		),

		cacheOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tutorcache_cache_operations_total",
				Help: "Cache operations by store, operation and result",
			},
			[]string{"store", "op", "result"},
		),

		cacheOpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tutorcache_cache_operation_duration_seconds",
				Help:    "Cache operation duration in seconds (includes the distributed tier when active)",
				Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"store", "op"},
		),

		storeEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tutorcache_store_entries",
				Help: "Current number of entries per local store",
			},
			[]string{"store"},
		),

		storeHitRate: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tutorcache_store_hit_rate_percent",
				Help: "Lifetime hit rate per local store",
			},
			[]string{"store"},
		),

		storeEvictions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tutorcache_store_evictions_total",
				Help: "Lifetime evictions per local store",
			},
			[]string{"store"},
		),

		distributedErrors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tutorcache_distributed_errors_total",
			Help: "Lifetime distributed-tier operation failures",
		}),

		cleanupRemoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tutorcache_cleanup_removed_total",
				Help: "Entries removed by periodic expiry sweeps",
			},
			[]string{"store"},
		),

		providerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tutorcache_provider_requests_total",
				Help: "Upstream provider requests by result",
			},
			[]string{"provider", "result"},
		),

		rateLimitTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tutorcache_ratelimit_total",
				Help: "Rate limit decisions",
			},
			[]string{"result"},
		),

		eventlogDropped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tutorcache_eventlog_dropped_total",
			Help: "Cache events dropped because the event log buffer was full",
		}),

		buildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tutorcache_build_info",
				Help: "Build information",
			},
			[]string{"version"},
		),
	}

	reg.MustRegister(
		r.inFlight,
		r.httpRequestsTotal,
		r.httpDuration,
		r.cacheOps,
		r.cacheOpDuration,
		r.storeEntries,
		r.storeHitRate,
		r.storeEvictions,
		r.distributedErrors,
		r.cleanupRemoved,
		r.providerRequests,
		r.rateLimitTotal,
		r.eventlogDropped,
		r.buildInfo,
	)

	h := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	r.metricsHandler = fasthttpadaptor.NewFastHTTPHandler(h)

	return r
}

// RecordCacheOp implements the cache manager's Recorder interface.
func (r *Registry) RecordCacheOp(store, op, result string, latency time.Duration) {
	r.cacheOps.WithLabelValues(store, op, result).Inc()
	r.cacheOpDuration.WithLabelValues(store, op).Observe(latency.Seconds())
}

func (r *Registry) IncInFlight() { r.inFlight.Inc() }
func (r *Registry) DecInFlight() { r.inFlight.Dec() }

// ObserveHTTP records end-to-end HTTP metrics.
func (r *Registry) ObserveHTTP(route string, statusCode int, dur time.Duration) {
	r.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(statusCode)).Inc()
	r.httpDuration.WithLabelValues(route).Observe(dur.Seconds())
}

// SetStoreGauges publishes one store's current size, hit rate and
// eviction total. Called from the periodic stats loop.
func (r *Registry) SetStoreGauges(store string, entries int, hitRate float64, evictions int64) {
	r.storeEntries.WithLabelValues(store).Set(float64(entries))
	r.storeHitRate.WithLabelValues(store).Set(hitRate)
	r.storeEvictions.WithLabelValues(store).Set(float64(evictions))
}

// SetDistributedErrors publishes the distributed tier's lifetime error
// count.
func (r *Registry) SetDistributedErrors(n int64) {
	r.distributedErrors.Set(float64(n))
}

// RecordCleanup records entries removed by an expiry sweep.
func (r *Registry) RecordCleanup(store string, removed int) {
	if removed > 0 {
		r.cleanupRemoved.WithLabelValues(store).Add(float64(removed))
	}
}

// RecordProviderRequest records one upstream LLM or embedding call.
func (r *Registry) RecordProviderRequest(provider, result string) {
	r.providerRequests.WithLabelValues(provider, result).Inc()
}

func (r *Registry) RecordRateLimit(result string) {
	r.rateLimitTotal.WithLabelValues(result).Inc()
}

// SetEventlogDropped publishes the event log's drop counter.
func (r *Registry) SetEventlogDropped(n int64) {
	r.eventlogDropped.Set(float64(n))
}

func (r *Registry) SetBuildInfo(version string) {
	// Gauge is used so the time series always exists.
	r.buildInfo.WithLabelValues(version).Set(1)
}

func (r *Registry) Handler() fasthttp.RequestHandler {
	return r.metricsHandler
}

func (r *Registry) PromRegistry() *prometheus.Registry { return r.reg }
