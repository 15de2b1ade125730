package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sharetube/watchparty/internal/platform/metrics"
)

func (c controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)
	r.Use(metrics.RequestMiddleware(c.metrics))
	r.Use(cors.AllowAll().Handler)

	r.Get("/health", c.health)
	r.Handle("/metrics", c.metrics.Handler(c.updateGauges))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		r.Get("/ws", c.serveWS)
		r.Route("/rooms", func(r chi.Router) {
			r.Get("/", c.listRooms)
			r.Get("/{room-code}", c.getRoom)
		})
	})

	return r
}

func (c controller) updateGauges() {
	stats := c.roomService.Stats()
	c.metrics.SetActiveRooms(stats.Rooms, stats.Participants)
	c.metrics.SetActiveConnections(stats.Connections)
}
