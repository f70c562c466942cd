package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "educrm"

// MetricsService owns the Prometheus registry. A nil *MetricsService is valid
// and records nothing.
type MetricsService struct {
	registry *prometheus.Registry

	httpSeconds *prometheus.HistogramVec
	httpTotal   *prometheus.CounterVec
	cacheOps    *prometheus.HistogramVec
	importRows  *prometheus.CounterVec
	exports     *prometheus.CounterVec
	bulkItems   *prometheus.CounterVec
	mail        *prometheus.CounterVec
	uploadBytes prometheus.Counter
}

func NewMetricsService() *MetricsService {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &MetricsService{
		registry: reg,
		httpSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Subsystem: "http", Name: "request_duration_seconds",
			Help: "HTTP request latency by route.",
		}, []string{"method", "route", "status"}),
		httpTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		cacheOps: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Subsystem: "cache", Name: "operation_seconds",
			Help:    "Redis cache calls by operation and outcome.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}, []string{"op", "outcome"}),
		importRows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "import_rows_total",
			Help: "Spreadsheet rows processed by entity and outcome.",
		}, []string{"entity", "outcome"}),
		exports: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "exports_total",
			Help: "Table exports by entity and format.",
		}, []string{"entity", "format"}),
		bulkItems: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "bulk_items_total",
			Help: "Records touched by bulk actions.",
		}, []string{"entity", "action", "outcome"}),
		mail: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "mail_deliveries_total",
			Help: "Outbound mail attempts by outcome.",
		}, []string{"outcome"}),
		uploadBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "upload_bytes_total",
			Help: "Bytes accepted by the upload endpoint.",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WatchQueue exports the backlog of a background queue as a gauge.
func (m *MetricsService) WatchQueue(name string, pending func() int) {
	if m == nil {
		return
	}
	promauto.With(m.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   metricsNamespace,
		Name:        "queue_pending_jobs",
		Help:        "Jobs buffered and not yet picked up.",
		ConstLabels: prometheus.Labels{"queue": name},
	}, func() float64 { return float64(pending()) })
}

func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, took time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpSeconds.WithLabelValues(method, route, code).Observe(took.Seconds())
	m.httpTotal.WithLabelValues(method, route, code).Inc()
}

// ObserveCache records one cache call. op is get, set or purge; outcome is
// hit, miss, ok or error.
func (m *MetricsService) ObserveCache(op, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.cacheOps.WithLabelValues(op, outcome).Observe(took.Seconds())
}

func (m *MetricsService) RecordImport(entity string, created, failed, skipped int) {
	if m == nil {
		return
	}
	for outcome, n := range map[string]int{"created": created, "failed": failed, "skipped": skipped} {
		m.importRows.WithLabelValues(entity, outcome).Add(float64(n))
	}
}

func (m *MetricsService) RecordExport(entity, format string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(entity, format).Inc()
}

func (m *MetricsService) RecordBulk(entity, action string, succeeded, failed int) {
	if m == nil {
		return
	}
	m.bulkItems.WithLabelValues(entity, action, "succeeded").Add(float64(succeeded))
	m.bulkItems.WithLabelValues(entity, action, "failed").Add(float64(failed))
}

func (m *MetricsService) RecordMail(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.mail.WithLabelValues("sent").Inc()
		return
	}
	m.mail.WithLabelValues("failed").Inc()
}

func (m *MetricsService) RecordUpload(size int64) {
	if m == nil {
		return
	}
	m.uploadBytes.Add(float64(size))
}
