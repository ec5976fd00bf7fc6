// Package metrics exposes client-side counters on a private Prometheus
// registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chizu"

// Metrics groups every collector the client reports.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	dataLoads   *prometheus.CounterVec
	routes      *prometheus.CounterVec
	positions   prometheus.Counter
	markers     *prometheus.GaugeVec
	alerts      *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Campus API requests by endpoint and status code.",
		}, []string{"endpoint", "code"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Campus API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		dataLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_loads_total",
			Help:      "Location and event snapshot loads by source and result.",
		}, []string{"source", "result"}),
		routes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_requests_total",
			Help:      "Route requests by outcome.",
		}, []string{"outcome"}),
		positions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "position_updates_total",
			Help:      "Live position updates applied to the map.",
		}),
		markers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "markers",
			Help:      "Map layers currently rendered, by channel.",
		}, []string{"channel"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "User-visible alerts by action.",
		}, []string{"action"}),
	}

	m.registry.MustRegister(
		m.apiRequests,
		m.apiLatency,
		m.dataLoads,
		m.routes,
		m.positions,
		m.markers,
		m.alerts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveAPI records one campus API call. status is zero for transport
// failures. Its signature matches api.Observer.
func (m *Metrics) ObserveAPI(endpoint string, status int, elapsed time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.apiRequests.WithLabelValues(endpoint, code).Inc()
	m.apiLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// DataLoad records a snapshot load from "api" or "store".
func (m *Metrics) DataLoad(source string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.dataLoads.WithLabelValues(source, result).Inc()
}

// Route records a route request outcome: "ok", "superseded", "no_position"
// or "error".
func (m *Metrics) Route(outcome string) {
	m.routes.WithLabelValues(outcome).Inc()
}

// PositionUpdate records one applied live position.
func (m *Metrics) PositionUpdate() {
	m.positions.Inc()
}

// Markers sets the rendered layer count for a channel.
func (m *Metrics) Markers(channel string, n int) {
	m.markers.WithLabelValues(channel).Set(float64(n))
}

// Alert records a user-visible alert for action.
func (m *Metrics) Alert(action string) {
	m.alerts.WithLabelValues(action).Inc()
}
