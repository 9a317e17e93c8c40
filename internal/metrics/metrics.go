// Package metrics exposes Prometheus counters for uploads, downloads and deletes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lanbox"

// Metrics holds the server's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	uploadsTotal    *prometheus.CounterVec
	uploadBytes     prometheus.Counter
	downloadsTotal  prometheus.Counter
	downloadBytes   prometheus.Counter
	deletesTotal    prometheus.Counter
	activeUploads   prometheus.Gauge
	requestDuration *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		uploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Uploads by outcome",
		}, []string{"status"}),

		uploadBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Bytes written by successful uploads",
		}),

		downloadsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Files served by /download",
		}),

		downloadBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_bytes_total",
			Help:      "Bytes sent by /download",
		}),

		deletesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deletes_total",
			Help:      "Files removed through the API",
		}),

		activeUploads: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_uploads",
			Help:      "Uploads currently being received",
		}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}
}

// UploadStarted bumps the in-flight gauge.
func (m *Metrics) UploadStarted() {
	if m == nil {
		return
	}
	m.activeUploads.Inc()
}

// UploadFinished records the outcome of an upload started with UploadStarted.
func (m *Metrics) UploadFinished(ok bool, size int64) {
	if m == nil {
		return
	}
	m.activeUploads.Dec()
	if !ok {
		m.uploadsTotal.WithLabelValues("failed").Inc()
		return
	}
	m.uploadsTotal.WithLabelValues("completed").Inc()
	m.uploadBytes.Add(float64(size))
}

// Downloaded records one served download.
func (m *Metrics) Downloaded(size int64) {
	if m == nil {
		return
	}
	m.downloadsTotal.Inc()
	m.downloadBytes.Add(float64(size))
}

// Deleted records one removed file.
func (m *Metrics) Deleted() {
	if m == nil {
		return
	}
	m.deletesTotal.Inc()
}

// Middleware observes request latency labelled by route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			code := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				code = he.Code
			} else if sc, ok := err.(interface{ StatusCode() int }); ok {
				code = sc.StatusCode()
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.requestDuration.
				WithLabelValues(c.Request().Method, route, strconv.Itoa(code)).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
