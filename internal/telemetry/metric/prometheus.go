package metric

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "ncabridge"

// Registry holds all application metrics on a private prometheus.Registry.
type Registry struct {
	reg *prometheus.Registry

	// Signing metrics
	SignRequests *prometheus.CounterVec
	SignDuration *prometheus.HistogramVec
	SignPending  prometheus.Gauge

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Portal metrics
	PortalCalls *prometheus.CounterVec
}

// NewRegistry creates a registry with the Go runtime and process
// collectors plus the application metrics.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		SignRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "sign",
			Name:      "requests_total",
			Help:      "Signing requests by outcome",
		}, []string{"outcome"}),

		// Signing waits on a human entering a password, so buckets run
		// well past typical RPC latencies.
		SignDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "sign",
			Name:      "duration_seconds",
			Help:      "Time from sending a signing request to its outcome",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}, []string{"outcome"}),

		SignPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "sign",
			Name:      "pending",
			Help:      "Signing requests waiting for the agent",
		}),

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served by the bridge",
		}, []string{"method", "route", "code"}),

		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		PortalCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "portal",
			Name:      "calls_total",
			Help:      "Portal API calls by endpoint and result",
		}, []string{"endpoint", "result"}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.SignRequests,
		r.SignDuration,
		r.SignPending,
		r.HTTPRequests,
		r.HTTPDuration,
		r.PortalCalls,
	)
	return r
}

// ObserveSign records the outcome of one signing request.
func (r *Registry) ObserveSign(outcome string, elapsed time.Duration) {
	r.SignRequests.WithLabelValues(outcome).Inc()
	r.SignDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// SetPending records the number of outstanding signing requests.
func (r *Registry) SetPending(n int) {
	r.SignPending.Set(float64(n))
}

// ObserveHTTP records one served HTTP request.
func (r *Registry) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	r.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObservePortal records one portal API call. err == nil counts as "ok".
func (r *Registry) ObservePortal(endpoint string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.PortalCalls.WithLabelValues(endpoint, result).Inc()
}

// MustRegister adds extra collectors to the registry.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.reg.MustRegister(cs...)
}

// Gatherer exposes the underlying registry for scraping and tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{
		Registry: r.reg,
	})
}
