package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes Prometheus metrics for inbound HTTP requests and for
// the orchestration engine (fetches, pipeline items, stage latency).
type Collector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	fetchTotal      *prometheus.CounterVec
	itemTotal       *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
}

// NewCollector constructs a collector with default histograms/counters.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "briefwire",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "briefwire",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	fetchTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "briefwire",
		Subsystem: "tasks",
		Name:      "fetches_total",
		Help:      "Source fetch attempts by terminal status.",
	}, []string{"status"})

	itemTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "briefwire",
		Subsystem: "tasks",
		Name:      "pipeline_items_total",
		Help:      "Pipeline item runs by terminal status.",
	}, []string{"status"})

	stageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "briefwire",
		Subsystem: "tasks",
		Name:      "stage_duration_seconds",
		Help:      "Latency distribution for enrichment stages.",
		Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"stage"})

	for _, c := range []prometheus.Collector{requestDuration, requestTotal, fetchTotal, itemTotal, stageDuration} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:        registry,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		fetchTotal:      fetchTotal,
		itemTotal:       itemTotal,
		stageDuration:   stageDuration,
	}, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

// ObserveFetch records a terminal fetch outcome. Nil-safe so callers can
// run without metrics in tests.
func (c *Collector) ObserveFetch(status string) {
	if c == nil {
		return
	}
	c.fetchTotal.WithLabelValues(status).Inc()
}

// ObserveItem records a terminal pipeline-item outcome.
func (c *Collector) ObserveItem(status string) {
	if c == nil {
		return
	}
	c.itemTotal.WithLabelValues(status).Inc()
}

// ObserveStage records one enrichment stage duration.
func (c *Collector) ObserveStage(stage string, d time.Duration) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
