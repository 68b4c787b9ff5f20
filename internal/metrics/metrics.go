// Package metrics exposes Prometheus collectors for HTTP traffic and task
// transactions.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taskboard/internal/ordering"
)

type Metrics struct {
	registry *prometheus.Registry

	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	activeConnections prometheus.Gauge

	txTotal    *prometheus.CounterVec
	txAttempts *prometheus.HistogramVec
}

var _ ordering.Recorder = (*Metrics)(nil)

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		activeConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_active_connections",
				Help: "Number of in-flight HTTP requests",
			},
		),
		txTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "task_transactions_total",
				Help: "Task ordering transactions by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		txAttempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "task_transaction_attempts",
				Help:    "Attempts used per task ordering transaction",
				Buckets: []float64{1, 2, 3, 5, 8},
			},
			[]string{"op"},
		),
	}
	registry.MustRegister(m.requestsTotal, m.requestDuration, m.activeConnections, m.txTotal, m.txAttempts)
	return m
}

// Middleware records every request under its route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.activeConnections.Inc()
		defer m.activeConnections.Dec()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.requestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveTransaction(op string, attempts int, err error) {
	m.txTotal.WithLabelValues(op, outcome(err)).Inc()
	m.txAttempts.WithLabelValues(op).Observe(float64(attempts))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ordering.ErrConflict):
		return "conflict"
	case errors.Is(err, ordering.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ordering.ErrNotFound), errors.Is(err, ordering.ErrInvalidPosition),
		errors.Is(err, ordering.ErrInvalidStatus):
		return "rejected"
	default:
		return "error"
	}
}
