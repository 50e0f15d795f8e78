package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	prewarmTotal    *prometheus.CounterVec
	prewarmDuration *prometheus.HistogramVec
	prewarmInFlight prometheus.Gauge
	queueLag        *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	prewarmTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sqa",
			Subsystem: "worker",
			Name:      "dataset_prewarm_total",
			Help:      "Total dataset pre-warm runs by status.",
		},
		[]string{"service", "status"},
	)
	prewarmDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sqa",
			Subsystem: "worker",
			Name:      "dataset_prewarm_duration_seconds",
			Help:      "Dataset pre-warm duration in seconds by status.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	prewarmInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sqa",
			Subsystem: "worker",
			Name:      "dataset_prewarm_in_flight",
			Help:      "Number of in-flight dataset pre-warm runs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sqa",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between pre-warm publish and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(prewarmTotal, prewarmDuration, prewarmInFlight, queueLag)

	return &WorkerMetrics{
		registry:        registry,
		prewarmTotal:    prewarmTotal,
		prewarmDuration: prewarmDuration,
		prewarmInFlight: prewarmInFlight,
		queueLag:        queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartPrewarm() {
	m.prewarmInFlight.Inc()
}

func (m *WorkerMetrics) FinishPrewarm(service string, duration time.Duration, err error) {
	m.prewarmInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.prewarmTotal.WithLabelValues(service, status).Inc()
	m.prewarmDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
