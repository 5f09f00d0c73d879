package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for one Larder binary. Each
// binary gets its own registry so /metrics never mixes services.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	itemMutations  *prometheus.CounterVec
	productLookups *prometheus.CounterVec
	digestsSent    prometheus.Counter
	backupRuns     *prometheus.CounterVec
}

// New creates the collectors under the "larder" namespace with a constant
// service label (e.g. "larder" or "dashboard").
func New(service string) *Metrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "larder",
			Subsystem:   "http",
			Name:        "requests_total",
			Help:        "Total HTTP requests processed.",
			ConstLabels: constLabels,
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "larder",
			Subsystem:   "http",
			Name:        "request_duration_seconds",
			Help:        "HTTP request duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "larder",
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: constLabels,
		},
	)
	itemMutations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "larder",
			Subsystem:   "pantry",
			Name:        "item_mutations_total",
			Help:        "Total pantry item mutations by action.",
			ConstLabels: constLabels,
		},
		[]string{"action"},
	)
	productLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "larder",
			Subsystem:   "pantry",
			Name:        "product_lookups_total",
			Help:        "Total barcode product lookups by result.",
			ConstLabels: constLabels,
		},
		[]string{"result"},
	)
	digestsSent := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "larder",
			Subsystem:   "push",
			Name:        "digests_sent_total",
			Help:        "Total expiry digests sent.",
			ConstLabels: constLabels,
		},
	)
	backupRuns := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "larder",
			Subsystem:   "backup",
			Name:        "runs_total",
			Help:        "Total backup runs by final status.",
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		itemMutations,
		productLookups,
		digestsSent,
		backupRuns,
	)

	return &Metrics{
		registry:        registry,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
		itemMutations:   itemMutations,
		productLookups:  productLookups,
		digestsSent:     digestsSent,
		backupRuns:      backupRuns,
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RequestStarted() { m.requestInFlight.Inc() }
func (m *Metrics) RequestDone()    { m.requestInFlight.Dec() }

// RecordRequest counts a finished HTTP request.
func (m *Metrics) RecordRequest(method, path string, status int, duration time.Duration) {
	m.requestTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordItemMutation counts an item create/update/delete.
func (m *Metrics) RecordItemMutation(action string) {
	m.itemMutations.WithLabelValues(action).Inc()
}

// RecordProductLookup counts a barcode lookup by result (hit, miss, error).
func (m *Metrics) RecordProductLookup(result string) {
	if result == "" {
		result = "unknown"
	}
	m.productLookups.WithLabelValues(result).Inc()
}

// RecordDigestSent counts one sent expiry digest.
func (m *Metrics) RecordDigestSent() {
	m.digestsSent.Inc()
}

// RecordBackupRun counts a finished backup run.
func (m *Metrics) RecordBackupRun(status string) {
	m.backupRuns.WithLabelValues(status).Inc()
}
