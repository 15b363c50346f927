package hub

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the hub's Prometheus collectors.
type Metrics struct {
	Clients     prometheus.Gauge
	Messages    prometheus.Counter
	Reactions   *prometheus.CounterVec
	RateLimited prometheus.Counter
	Evicted     prometheus.Counter
	Rejected    prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat",
			Name:      "connected_clients",
			Help:      "Number of connected websocket clients.",
		}),
		Messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "messages_total",
			Help:      "Messages accepted and broadcast.",
		}),
		Reactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "reactions_total",
			Help:      "Reaction toggles, by resulting action.",
		}, []string{"action"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "rate_limited_total",
			Help:      "send_message frames dropped by the per-client rate limit.",
		}),
		Evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "evicted_clients_total",
			Help:      "Clients disconnected because their send buffer was full.",
		}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "rejected_connections_total",
			Help:      "Connections refused because the hub was full.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Clients, m.Messages, m.Reactions, m.RateLimited, m.Evicted, m.Rejected)
	}
	return m
}
