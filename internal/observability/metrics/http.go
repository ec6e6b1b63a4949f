package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	askTotal         *prometheus.CounterVec
	askModeTotal     *prometheus.CounterVec
	askFragmentsUsed *prometheus.HistogramVec
	askDuration      *prometheus.HistogramVec

	providerAttempts *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec

	cacheLookups *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cqa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cqa",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	askTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqa",
			Subsystem: "ask",
			Name:      "requests_total",
			Help:      "Total ask requests by corpus and outcome.",
		},
		[]string{"service", "corpus", "outcome"},
	)
	askModeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqa",
			Subsystem: "ask",
			Name:      "mode_requests_total",
			Help:      "Total answered requests by retrieval mode.",
		},
		[]string{"service", "corpus", "mode"},
	)
	askFragmentsUsed := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cqa",
			Subsystem: "ask",
			Name:      "fragments_used",
			Help:      "Distribution of context fragments per answered request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "corpus"},
	)
	askDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cqa",
			Subsystem: "ask",
			Name:      "duration_seconds",
			Help:      "End-to-end ask duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "corpus"},
	)
	providerAttempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqa",
			Subsystem: "provider",
			Name:      "attempts_total",
			Help:      "Generation attempts by provider and outcome.",
		},
		[]string{"service", "provider", "outcome"},
	)
	providerLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cqa",
			Subsystem: "provider",
			Name:      "latency_seconds",
			Help:      "Generation attempt latency in seconds by provider.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"service", "provider"},
	)
	cacheLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqa",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by outcome.",
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		askTotal,
		askModeTotal,
		askFragmentsUsed,
		askDuration,
		providerAttempts,
		providerLatency,
		cacheLookups,
	)

	return &HTTPServerMetrics{
		registry:         registry,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		askTotal:         askTotal,
		askModeTotal:     askModeTotal,
		askFragmentsUsed: askFragmentsUsed,
		askDuration:      askDuration,
		providerAttempts: providerAttempts,
		providerLatency:  providerLatency,
		cacheLookups:     cacheLookups,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath keeps label cardinality bounded: anything outside the known
// surface is folded into one bucket.
func normalizePath(path string) string {
	switch {
	case path == "/healthz" || path == "/metrics":
		return path
	case strings.HasPrefix(path, "/api/v1/"):
		return path
	default:
		return "/other"
	}
}

func (m *HTTPServerMetrics) RecordAskOutcome(service, corpus, outcome string) {
	if corpus == "" {
		corpus = "unknown"
	}
	m.askTotal.WithLabelValues(service, corpus, outcome).Inc()
}

func (m *HTTPServerMetrics) RecordAskObservation(service, corpus, mode string, fragmentsUsed int, duration time.Duration) {
	if mode == "" {
		mode = "unknown"
	}
	m.askModeTotal.WithLabelValues(service, corpus, mode).Inc()
	m.askFragmentsUsed.WithLabelValues(service, corpus).Observe(float64(fragmentsUsed))
	m.askDuration.WithLabelValues(service, corpus).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordProviderAttempt(service, provider string, failed bool, latency time.Duration) {
	outcome := "success"
	if failed {
		outcome = "failure"
	}
	m.providerAttempts.WithLabelValues(service, provider, outcome).Inc()
	m.providerLatency.WithLabelValues(service, provider).Observe(latency.Seconds())
}

func (m *HTTPServerMetrics) RecordCacheLookup(service, outcome string) {
	m.cacheLookups.WithLabelValues(service, outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
