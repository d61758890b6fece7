// Package metrics holds the Prometheus instruments of the API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "icr"

type Metrics struct {
	registry *prometheus.Registry

	// HTTPRequests counts handled requests. Labels: method, route, status.
	HTTPRequests *prometheus.CounterVec
	// HTTPDuration observes handler latency. Labels: method, route.
	HTTPDuration *prometheus.HistogramVec
	// RemoteCalls counts calls to the data service. Labels: op, kind ("ok" on success).
	RemoteCalls *prometheus.CounterVec
	// RemoteDuration observes data service latency. Labels: op.
	RemoteDuration *prometheus.HistogramVec
	// CatalogReads counts catalog lookups. Labels: source (cache, remote).
	CatalogReads *prometheus.CounterVec
}

// New registers every instrument on a fresh registry, so several instances
// can coexist (one per test).
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP handler latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		RemoteCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "calls_total",
			Help:      "Data service calls by operation and outcome kind.",
		}, []string{"op", "kind"}),
		RemoteDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "call_duration_seconds",
			Help:      "Data service call latency.",
			Buckets:   []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"op"}),
		CatalogReads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "reads_total",
			Help:      "Catalog reads by source.",
		}, []string{"source"}),
	}
}

// ObserveRemote records one data service call. Its signature matches the
// data access client's Observer hook.
func (m *Metrics) ObserveRemote(op, kind string, elapsed time.Duration) {
	m.RemoteCalls.WithLabelValues(op, kind).Inc()
	m.RemoteDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
