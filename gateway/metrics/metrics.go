// Package metrics holds the gateway's domain collectors: proxied traffic,
// relay sessions, and usage-meter health. Request-level HTTP metrics live in
// the observability middleware; these track what the gateway actually relays.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Proxy outcome labels.
const (
	OutcomeOK          = "ok"
	OutcomeUpstreamErr = "upstream_error"
	OutcomeUnavailable = "upstream_unavailable"
	OutcomeRejected    = "rejected"
)

// Relay direction labels.
const (
	DirectionClientToUpstream = "client_to_upstream"
	DirectionUpstreamToClient = "upstream_to_client"
)

type Metrics struct {
	ProxiedRequests *prometheus.CounterVec
	UpstreamLatency *prometheus.HistogramVec
	ActiveRelays    prometheus.Gauge
	RelayMessages   *prometheus.CounterVec
	MeterDrops      prometheus.Counter
	MeterFailures   prometheus.Counter
}

// New registers the domain collectors on the shared registry. A nil registry
// yields working but unregistered collectors, which keeps unit tests free of
// registration conflicts.
func New(prefix string, registry *prometheus.Registry) *Metrics {
	if prefix == "" {
		prefix = "chaingate"
	}
	m := &Metrics{
		ProxiedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: prefix,
			Name:      "proxied_requests_total",
			Help:      "Unary JSON-RPC calls relayed upstream, by network and outcome.",
		}, []string{"network", "outcome"}),
		UpstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: prefix,
			Name:      "upstream_latency_seconds",
			Help:      "Wall-clock latency of upstream HTTP calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"network"}),
		ActiveRelays: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: prefix,
			Name:      "active_relays",
			Help:      "WebSocket relay sessions currently open.",
		}),
		RelayMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: prefix,
			Name:      "relay_messages_total",
			Help:      "Messages forwarded by the WebSocket relay, by direction.",
		}, []string{"direction"}),
		MeterDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: prefix,
			Name:      "meter_drops_total",
			Help:      "Usage increments dropped because the meter queue was full.",
		}),
		MeterFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: prefix,
			Name:      "meter_failures_total",
			Help:      "Usage increments that failed at the store.",
		}),
	}
	if registry != nil {
		registry.MustRegister(
			m.ProxiedRequests,
			m.UpstreamLatency,
			m.ActiveRelays,
			m.RelayMessages,
			m.MeterDrops,
			m.MeterFailures,
		)
	}
	return m
}
