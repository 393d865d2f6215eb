package websocket

import (
	"chat-hub-backend/internal/hub"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_hub_ws_connections",
			Help: "Current number of active websocket connections.",
		},
	)
	wsEventsDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_hub_ws_events_delivered_total",
			Help: "Total websocket events delivered to clients.",
		},
	)
	wsEventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_hub_ws_events_dropped_total",
			Help: "Total websocket events dropped on dead or congested connections.",
		},
	)
)

func init() {
	prometheus.MustRegister(wsConnections, wsEventsDelivered, wsEventsDropped)
}

// RegisterRoomGauge exposes the hub's live room count. Called once from main
// after the hub exists.
func RegisterRoomGauge(h *hub.Hub) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "chat_hub_ws_rooms",
			Help: "Current number of websocket rooms.",
		},
		func() float64 {
			return float64(h.RoomCount())
		},
	))
}

func incConnections() {
	wsConnections.Inc()
}

func decConnections() {
	wsConnections.Dec()
}

func addDelivered(count int) {
	wsEventsDelivered.Add(float64(count))
}

func incDropped() {
	wsEventsDropped.Inc()
}
