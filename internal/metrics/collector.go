package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector collects and exposes upload metrics
type Collector struct {
	registry        *prometheus.Registry
	recordsTotal    *prometheus.CounterVec
	bytesTotal      prometheus.Counter
	inflightRecords prometheus.Gauge
	duration        prometheus.Histogram
	attempts        prometheus.Histogram
}

// New creates a metrics collector. Each collector owns its registry so
// repeated runs in one process never collide on registration.
func New() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		recordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upload_records_total",
				Help: "Total number of records processed",
			},
			[]string{"status"},
		),
		bytesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "upload_payload_bytes_total",
				Help: "Total payload bytes uploaded",
			},
		),
		inflightRecords: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "upload_inflight_records",
				Help: "Number of records currently being uploaded",
			},
		),
		duration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "upload_record_duration_seconds",
				Help:    "Time taken to upload one record including retries",
				Buckets: prometheus.DefBuckets,
			},
		),
		attempts: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "upload_record_attempts",
				Help:    "Store calls needed per record",
				Buckets: prometheus.LinearBuckets(1, 1, 10),
			},
		),
	}
}

// IncSuccess increments the successful record counter
func (c *Collector) IncSuccess() {
	c.recordsTotal.WithLabelValues("success").Inc()
}

// IncFailed increments the failed record counter
func (c *Collector) IncFailed() {
	c.recordsTotal.WithLabelValues("failed").Inc()
}

// IncDuplicate increments the duplicate record counter
func (c *Collector) IncDuplicate() {
	c.recordsTotal.WithLabelValues("duplicate").Inc()
}

// AddBytes adds to total payload bytes uploaded
func (c *Collector) AddBytes(bytes int64) {
	c.bytesTotal.Add(float64(bytes))
}

// IncInflight marks one record as in flight
func (c *Collector) IncInflight() {
	c.inflightRecords.Inc()
}

// DecInflight marks one record as done
func (c *Collector) DecInflight() {
	c.inflightRecords.Dec()
}

// ObserveDuration observes one record's upload duration
func (c *Collector) ObserveDuration(duration time.Duration) {
	c.duration.Observe(duration.Seconds())
}

// ObserveAttempts observes how many store calls one record needed
func (c *Collector) ObserveAttempts(attempts int) {
	c.attempts.Observe(float64(attempts))
}

// Handler returns an HTTP handler exposing this collector's registry
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// StartServer starts the metrics HTTP server
func (c *Collector) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return http.ListenAndServe(addr, mux)
}
