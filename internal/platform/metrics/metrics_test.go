package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	return string(body)
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.IncRoomsCreated()
	m.IncHostMigrations()
	m.IncMessages("sync-time")
	m.IncDroppedHostActions("play")

	body := scrape(t, m.Handler(func() {
		m.SetActiveRooms(3, 7)
		m.SetActiveConnections(9)
	}))

	assert.Contains(t, body, "watchparty_rooms_created_total 1")
	assert.Contains(t, body, "watchparty_host_migrations_total 1")
	assert.Contains(t, body, `watchparty_ws_messages_total{type="sync-time"} 1`)
	assert.Contains(t, body, `watchparty_dropped_host_actions_total{type="play"} 1`)
	assert.Contains(t, body, "watchparty_active_rooms 3")
	assert.Contains(t, body, "watchparty_active_participants 7")
	assert.Contains(t, body, "watchparty_active_connections 9")
}

func TestRequestMiddleware(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(RequestMiddleware(m))
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/missing", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) })

	for _, path := range []string{"/ok", "/missing", "/ok"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	body := scrape(t, m.Handler(nil))
	assert.Contains(t, body, "watchparty_http_requests_total 3")
	assert.Contains(t, body, "watchparty_http_errors_total 1")
}
