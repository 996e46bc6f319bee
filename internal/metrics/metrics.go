// Package metrics exposes Prometheus collectors for provider calls and
// stream sessions.
//
// Metrics:
//   - <ns>_provider_requests_total: provider calls by model and HTTP status
//   - <ns>_provider_errors_total: provider failures by error kind
//   - <ns>_provider_latency_seconds: provider round-trip latency by model
//   - <ns>_stream_sessions_active: streaming sessions currently running
//   - <ns>_stream_events_total: push events emitted by event name
//
// All recording methods are safe to call on a nil *Collector.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry and the gateway's metric vectors
type Collector struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec

	activeStreams prometheus.Gauge
	streamEvents  *prometheus.CounterVec

	providerUp prometheus.Gauge
}

// New creates and registers all collectors under namespace
func New(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_requests_total",
				Help:      "Total number of provider calls by model and HTTP status",
			},
			[]string{"model", "status"},
		),

		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_errors_total",
				Help:      "Total number of provider failures by kind",
			},
			[]string{"kind"},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_latency_seconds",
				Help:      "Provider call latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"model"},
		),

		activeStreams: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stream_sessions_active",
				Help:      "Number of streaming sessions currently emitting",
			},
		),

		streamEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_events_total",
				Help:      "Total number of push events emitted by event name",
			},
			[]string{"event"},
		),

		providerUp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "provider_up",
				Help:      "1 if the last scheduled connectivity probe got HTTP 200",
			},
		),
	}

	c.registry.MustRegister(
		c.requests,
		c.errors,
		c.latency,
		c.activeStreams,
		c.streamEvents,
		c.providerUp,
	)

	return c
}

// ObserveRequest records one provider round trip. status is 0 when no HTTP
// response was received.
func (c *Collector) ObserveRequest(model string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(model, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(model).Observe(elapsed.Seconds())
}

// ObserveError records a classified provider failure
// (config, transport, upstream, parse).
func (c *Collector) ObserveError(kind string) {
	if c == nil {
		return
	}
	c.errors.WithLabelValues(kind).Inc()
}

// StreamStarted increments the active stream gauge
func (c *Collector) StreamStarted() {
	if c == nil {
		return
	}
	c.activeStreams.Inc()
}

// StreamFinished decrements the active stream gauge
func (c *Collector) StreamFinished() {
	if c == nil {
		return
	}
	c.activeStreams.Dec()
}

// ObserveEvent counts one emitted push event
func (c *Collector) ObserveEvent(event string) {
	if c == nil {
		return
	}
	c.streamEvents.WithLabelValues(event).Inc()
}

// SetProviderUp records the outcome of a background probe
func (c *Collector) SetProviderUp(up bool) {
	if c == nil {
		return
	}
	if up {
		c.providerUp.Set(1)
	} else {
		c.providerUp.Set(0)
	}
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
