// Package metrics exposes Prometheus collectors for HTTP traffic, upstream
// CMS calls and client analytics events. Each binary owns one registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one process. A nil *Metrics records
// nothing.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	upstream *prometheus.HistogramVec
	events   *prometheus.CounterVec
}

// New registers the collectors under the given namespace ("cms", "site").
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		upstream: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of calls to the CMS API by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_events_total",
			Help:      "Client analytics events received, by event name.",
		}, []string{"event"}),
	}

	reg.MustRegister(
		m.requests, m.duration, m.upstream, m.events,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveUpstream records one call to the CMS. outcome is an HTTP status
// class such as "2xx", or "error" when no response arrived.
func (m *Metrics) ObserveUpstream(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.upstream.WithLabelValues(outcome).Observe(d.Seconds())
}

// CountEvent increments the counter of a client analytics event.
func (m *Metrics) CountEvent(name string, n int) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(name).Add(float64(n))
}
