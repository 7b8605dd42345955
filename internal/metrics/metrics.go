// Package metrics exposes the prometheus collectors tracked across rooms,
// connections, rate limiting, and engine latencies.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector registered with one prometheus
// registry, grounded on the active-rooms/active-connections/
// room-participants gauges used by the session-gateway reference.
type Metrics struct {
	ActiveRooms             prometheus.Gauge
	ActiveConnections       prometheus.Gauge
	RoomParticipants        *prometheus.GaugeVec
	RateLimitRejections     *prometheus.CounterVec
	DecisionLatencySeconds  *prometheus.HistogramVec
	NightPhaseDurationSecs  prometheus.Histogram
}

// New registers and returns the metrics bundle on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "onuw_active_rooms",
			Help: "Number of rooms currently tracked by the room manager.",
		}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "onuw_active_connections",
			Help: "Number of currently open gateway sessions.",
		}),
		RoomParticipants: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "onuw_room_participants",
			Help: "Number of members in a room, by room code.",
		}, []string{"room_code"}),
		RateLimitRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onuw_rate_limit_rejections_total",
			Help: "Count of inbound messages rejected by the rate limiter, by reason.",
		}, []string{"reason"}),
		DecisionLatencySeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "onuw_decision_latency_seconds",
			Help: "Latency of decision provider Ask calls, by prompt kind.",
		}, []string{"kind"}),
		NightPhaseDurationSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "onuw_night_phase_duration_seconds",
			Help: "Wall-clock duration of the night phase.",
		}),
	}
	reg.MustRegister(
		m.ActiveRooms, m.ActiveConnections, m.RoomParticipants,
		m.RateLimitRejections, m.DecisionLatencySeconds, m.NightPhaseDurationSecs,
	)
	return m
}
