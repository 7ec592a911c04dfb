// Package metrics exposes Prometheus collectors for HTTP traffic and link
// activity.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered on one registry.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInFlight        prometheus.Gauge

	redirectsTotal  *prometheus.CounterVec
	statsCacheTotal *prometheus.CounterVec
	sweepsTotal     *prometheus.CounterVec
	archivedTotal   prometheus.Counter
}

// New registers the collectors on a fresh registry that also carries the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors on reg and serves them from g.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: g,

		// Total HTTP requests partitioned by method, route, and status code
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latencies in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		httpInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_inflight_requests",
				Help: "Number of HTTP requests currently being served",
			},
		),

		redirectsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snip_redirects_total",
				Help: "Short code resolutions by result",
			},
			[]string{"result"},
		),
		statsCacheTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snip_stats_cache_requests_total",
				Help: "Stats cache lookups by result",
			},
			[]string{"result"},
		),
		sweepsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snip_sweeps_total",
				Help: "Unused link sweeps by final status",
			},
			[]string{"status"},
		),
		archivedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "snip_links_archived_total",
				Help: "Links moved to the archive by sweeps",
			},
		),
	}
}

// Middleware records request count, latency and in-flight requests.
// Labels use the matched route template to keep cardinality low.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		labels := prometheus.Labels{
			"method": c.Request.Method,
			"route":  route,
			"status": strconv.Itoa(c.Writer.Status()),
		}
		m.httpRequestsTotal.With(labels).Inc()
		m.httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Redirect counts a short code resolution.
func (m *Metrics) Redirect(result string) {
	m.redirectsTotal.WithLabelValues(result).Inc()
}

// StatsCache counts a stats cache lookup.
func (m *Metrics) StatsCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.statsCacheTotal.WithLabelValues(result).Inc()
}

// Sweep counts a finished sweep and the links it archived.
func (m *Metrics) Sweep(status string, archived int) {
	m.sweepsTotal.WithLabelValues(status).Inc()
	if archived > 0 {
		m.archivedTotal.Add(float64(archived))
	}
}
