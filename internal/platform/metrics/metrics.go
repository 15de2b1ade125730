package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's prometheus collectors on a private registry.
type Metrics struct {
	registry           *prometheus.Registry
	requestsTotal      prometheus.Counter
	errorsTotal        prometheus.Counter
	messagesTotal      *prometheus.CounterVec
	roomsCreatedTotal  prometheus.Counter
	roomsDeletedTotal  prometheus.Counter
	hostMigrations     prometheus.Counter
	droppedHostActions *prometheus.CounterVec
	droppedSends       prometheus.Counter
	activeRooms        prometheus.Gauge
	activeParticipants prometheus.Gauge
	activeConnections  prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watchparty_http_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watchparty_http_errors_total",
			Help: "Total number of HTTP responses with status >= 400",
		}),
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watchparty_ws_messages_total",
			Help: "Websocket messages handled, by type",
		}, []string{"type"}),
		roomsCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watchparty_rooms_created_total",
			Help: "Total number of rooms created",
		}),
		roomsDeletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watchparty_rooms_deleted_total",
			Help: "Total number of rooms deleted after the last participant left",
		}),
		hostMigrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watchparty_host_migrations_total",
			Help: "Total number of host handovers",
		}),
		droppedHostActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watchparty_dropped_host_actions_total",
			Help: "Host only messages ignored because the sender was not the host",
		}, []string{"type"}),
		droppedSends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watchparty_dropped_sends_total",
			Help: "Outbound messages dropped because a connection queue was full or closed",
		}),
		activeRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "watchparty_active_rooms",
			Help: "Number of live rooms on this instance",
		}),
		activeParticipants: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "watchparty_active_participants",
			Help: "Number of participants across live rooms",
		}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "watchparty_active_connections",
			Help: "Number of open websocket connections",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.messagesTotal,
		m.roomsCreatedTotal,
		m.roomsDeletedTotal,
		m.hostMigrations,
		m.droppedHostActions,
		m.droppedSends,
		m.activeRooms,
		m.activeParticipants,
		m.activeConnections,
	)

	return m
}

func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

func (m *Metrics) IncMessages(messageType string) {
	m.messagesTotal.WithLabelValues(messageType).Inc()
}

func (m *Metrics) IncRoomsCreated() {
	m.roomsCreatedTotal.Inc()
}

func (m *Metrics) IncRoomsDeleted() {
	m.roomsDeletedTotal.Inc()
}

func (m *Metrics) IncHostMigrations() {
	m.hostMigrations.Inc()
}

func (m *Metrics) IncDroppedHostActions(messageType string) {
	m.droppedHostActions.WithLabelValues(messageType).Inc()
}

func (m *Metrics) IncDroppedSends() {
	m.droppedSends.Inc()
}

func (m *Metrics) SetActiveRooms(rooms, participants int) {
	m.activeRooms.Set(float64(rooms))
	m.activeParticipants.Set(float64(participants))
}

func (m *Metrics) SetActiveConnections(n int) {
	m.activeConnections.Set(float64(n))
}

// Handler serves the registry. updateGauges runs before each scrape.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
