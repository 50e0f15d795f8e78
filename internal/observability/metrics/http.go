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

	stageDuration      *prometheus.HistogramVec
	questionsTotal     *prometheus.CounterVec
	questionErrors     *prometheus.HistogramVec
	retrievedDocuments *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sqa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sqa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sqa",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sqa",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "stage"},
	)
	questionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sqa",
			Subsystem: "pipeline",
			Name:      "questions_total",
			Help:      "Total handled questions by intent and outcome.",
		},
		[]string{"service", "intent", "satisfied"},
	)
	questionErrors := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sqa",
			Subsystem: "pipeline",
			Name:      "question_errors",
			Help:      "Distribution of internal errors accumulated per question.",
			Buckets:   []float64{0, 1, 2, 3, 5},
		},
		[]string{"service"},
	)
	retrievedDocuments := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sqa",
			Subsystem: "retrieval",
			Name:      "documents",
			Help:      "Distribution of retrieved documents per question.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		stageDuration,
		questionsTotal,
		questionErrors,
		retrievedDocuments,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		stageDuration:      stageDuration,
		questionsTotal:     questionsTotal,
		questionErrors:     questionErrors,
		retrievedDocuments: retrievedDocuments,
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

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/conversations/"):
		return "/v1/conversations/{conversation_id}"
	default:
		return path
	}
}

// PipelineObserver adapts the metrics to the orchestrator's telemetry hook.
type PipelineObserver struct {
	metrics *HTTPServerMetrics
	service string
}

func NewPipelineObserver(m *HTTPServerMetrics, service string) *PipelineObserver {
	return &PipelineObserver{metrics: m, service: service}
}

func (o *PipelineObserver) ObserveStage(stage string, duration time.Duration) {
	o.metrics.stageDuration.WithLabelValues(o.service, stage).Observe(duration.Seconds())
}

func (o *PipelineObserver) QuestionHandled(intent string, satisfied bool, errorCount int) {
	if intent == "" {
		intent = "unknown"
	}
	o.metrics.questionsTotal.WithLabelValues(o.service, intent, strconv.FormatBool(satisfied)).Inc()
	o.metrics.questionErrors.WithLabelValues(o.service).Observe(float64(errorCount))
}

func (m *HTTPServerMetrics) RecordRetrievedDocuments(service string, count int) {
	m.retrievedDocuments.WithLabelValues(service).Observe(float64(count))
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
