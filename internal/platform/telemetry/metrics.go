package telemetry

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the service. Each instance owns
// its registry so tests can build as many as they like.
type Metrics struct {
	registry         *prometheus.Registry
	DecisionsTotal   *prometheus.CounterVec
	DecisionDuration *prometheus.HistogramVec
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	AuditDropped     prometheus.Counter
}

// NewMetrics returns a new set of Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hrgate_access_decisions_total",
				Help: "Authorization decisions by route, verdict and terminal gate.",
			},
			[]string{"route", "verdict", "gate"},
		),
		DecisionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hrgate_access_decision_duration_seconds",
				Help:    "Time spent evaluating an authorization decision.",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 5},
			},
			[]string{"route"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"code", "method", "route"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of latencies for HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"code", "method", "route"},
		),
		AuditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hrgate_audit_events_dropped_total",
			Help: "Audit events dropped because the buffer was full.",
		}),
	}
	m.registry.MustRegister(
		m.DecisionsTotal,
		m.DecisionDuration,
		m.RequestsTotal,
		m.RequestDuration,
		m.AuditDropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveDecision records one authorization outcome.
func (m *Metrics) ObserveDecision(route, verdict, gate string, elapsed time.Duration) {
	if gate == "" {
		gate = "none"
	}
	m.DecisionsTotal.WithLabelValues(route, verdict, gate).Inc()
	m.DecisionDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// IncAuditDropped counts an audit event lost to backpressure.
func (m *Metrics) IncAuditDropped() {
	m.AuditDropped.Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latencies. The route label is the
// matched ServeMux pattern so path ids do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &codeRecorder{ResponseWriter: w, code: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		code := strconv.Itoa(rec.code)
		m.RequestsTotal.WithLabelValues(code, r.Method, route).Inc()
		m.RequestDuration.WithLabelValues(code, r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type codeRecorder struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (c *codeRecorder) WriteHeader(code int) {
	if !c.wroteHeader {
		c.code = code
		c.wroteHeader = true
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *codeRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := c.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	c.code = http.StatusSwitchingProtocols
	c.wroteHeader = true
	return h.Hijack()
}

func (c *codeRecorder) Unwrap() http.ResponseWriter {
	return c.ResponseWriter
}
