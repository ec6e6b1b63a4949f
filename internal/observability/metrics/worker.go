package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	recordsTotal    *prometheus.CounterVec
	persistDuration *prometheus.HistogramVec
	recordsInFlight prometheus.Gauge
	queueLag        *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	recordsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqa",
			Subsystem: "worker",
			Name:      "answer_records_total",
			Help:      "Total consumed answer records by status.",
		},
		[]string{"service", "status"},
	)
	persistDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cqa",
			Subsystem: "worker",
			Name:      "record_persist_duration_seconds",
			Help:      "Answer record persistence duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	recordsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cqa",
			Subsystem: "worker",
			Name:      "records_in_flight",
			Help:      "Number of answer records currently being persisted.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cqa",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between answer computation and record persistence.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(recordsTotal, persistDuration, recordsInFlight, queueLag)

	return &WorkerMetrics{
		registry:        registry,
		recordsTotal:    recordsTotal,
		persistDuration: persistDuration,
		recordsInFlight: recordsInFlight,
		queueLag:        queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartRecord() {
	m.recordsInFlight.Inc()
}

func (m *WorkerMetrics) FinishRecord(service string, duration time.Duration, err error) {
	m.recordsInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.recordsTotal.WithLabelValues(service, status).Inc()
	m.persistDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
