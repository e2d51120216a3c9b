// Package metrics owns the Prometheus collectors. Recording helpers are
// no-ops until Init has run, so tests and metric-less deployments can call
// them freely.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Regeneration outcomes.
const (
	OutcomeCompleted  = "completed"
	OutcomeFailed     = "failed"
	OutcomeContention = "contention"
	OutcomeError      = "error"
)

var (
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// StoreLatency records repository operation latency.
	StoreLatency *prometheus.HistogramVec

	regenerationsTotal      *prometheus.CounterVec
	chainContentionRetries  prometheus.Counter
	generationFailuresTotal *prometheus.CounterVec
)

var initOnce sync.Once

// Init registers every collector with the default registry.
// Safe to call multiple times; only the first call registers.
func Init() {
	initOnce.Do(func() {
		register(prometheus.DefaultRegisterer)
	})
}

func register(reg prometheus.Registerer) {
	f := promauto.With(reg)

	httpRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	httpRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parley_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	StoreLatency = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parley_store_latency_seconds",
			Help:    "Store operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	regenerationsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_regenerations_total",
			Help: "Regeneration attempts by outcome",
		},
		[]string{"outcome"},
	)

	chainContentionRetries = f.NewCounter(prometheus.CounterOpts{
		Name: "parley_chain_contention_retries_total",
		Help: "Locked sections retried after chain contention",
	})

	generationFailuresTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_generation_failures_total",
			Help: "Failed calls to the generation backend",
		},
		[]string{"provider"},
	)
}

// ObserveStore records the latency of a store operation started at start.
func ObserveStore(op string, start time.Time) {
	if StoreLatency == nil {
		return
	}
	StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// RecordRegeneration counts one regeneration with the given outcome.
func RecordRegeneration(outcome string) {
	if regenerationsTotal == nil {
		return
	}
	regenerationsTotal.WithLabelValues(outcome).Inc()
}

// RecordContentionRetry counts one retry of a chain's locked section.
func RecordContentionRetry() {
	if chainContentionRetries == nil {
		return
	}
	chainContentionRetries.Inc()
}

// RecordGenerationFailure counts one failed generation for provider.
func RecordGenerationFailure(provider string) {
	if generationFailuresTotal == nil {
		return
	}
	generationFailuresTotal.WithLabelValues(provider).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if httpRequestsTotal == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		httpRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(sw.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
