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

	documentsIngestedTotal *prometheus.CounterVec
	documentsDeletedTotal  *prometheus.CounterVec
	ingestDuration         *prometheus.HistogramVec
	qaAnswersTotal         *prometheus.CounterVec
	qaDuration             *prometheus.HistogramVec
	summarizerFallbacks    *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docman",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docman",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docman",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	documentsIngestedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docman",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Total ingested documents by storage category.",
		},
		[]string{"service", "category"},
	)
	documentsDeletedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docman",
			Subsystem: "ingest",
			Name:      "documents_deleted_total",
			Help:      "Total deleted documents.",
		},
		[]string{"service"},
	)
	ingestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docman",
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Upload pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	qaAnswersTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docman",
			Subsystem: "qa",
			Name:      "answers_total",
			Help:      "Total composed answers by method.",
		},
		[]string{"service", "method"},
	)
	qaDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docman",
			Subsystem: "qa",
			Name:      "duration_seconds",
			Help:      "Question answering duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	summarizerFallbacks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docman",
			Subsystem: "llm",
			Name:      "fallbacks_total",
			Help:      "Total requests answered deterministically although the model path was requested.",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		documentsIngestedTotal,
		documentsDeletedTotal,
		ingestDuration,
		qaAnswersTotal,
		qaDuration,
		summarizerFallbacks,
	)

	return &HTTPServerMetrics{
		registry:               registry,
		requestTotal:           requestTotal,
		requestDuration:        requestDuration,
		requestInFlight:        requestInFlight,
		documentsIngestedTotal: documentsIngestedTotal,
		documentsDeletedTotal:  documentsDeletedTotal,
		ingestDuration:         ingestDuration,
		qaAnswersTotal:         qaAnswersTotal,
		qaDuration:             qaDuration,
		summarizerFallbacks:    summarizerFallbacks,
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
	case strings.HasSuffix(path, "/file") && strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}/file"
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordIngest(service, category string, duration time.Duration) {
	if category == "" {
		category = "unknown"
	}
	m.documentsIngestedTotal.WithLabelValues(service, category).Inc()
	m.ingestDuration.WithLabelValues(service).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordDelete(service string) {
	m.documentsDeletedTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordAnswer(service, method string, duration time.Duration) {
	if method == "" {
		method = "unknown"
	}
	m.qaAnswersTotal.WithLabelValues(service, method).Inc()
	m.qaDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordSummarizerFallback counts a model-requested operation that
// degraded to the deterministic path.
func (m *HTTPServerMetrics) RecordSummarizerFallback(service, operation string) {
	m.summarizerFallbacks.WithLabelValues(service, operation).Inc()
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
