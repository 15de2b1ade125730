package wsrouter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/pkg/wsconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addInput struct {
	N int `json:"n"`
}

type event struct {
	kind string
	n    int
	err  error
}

func serve(t *testing.T, r *WSRouter) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ws, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		conn := wsconn.New("c1", ws, wsconn.DefaultConfig())
		defer conn.Close()
		r.ServeConn(context.Background(), conn)
	}))
	t.Cleanup(srv.Close)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	return ws
}

func next(t *testing.T, events <-chan event) event {
	t.Helper()

	select {
	case e := <-events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return event{}
	}
}

func TestServeConnDispatchesTypedPayloads(t *testing.T) {
	events := make(chan event, 8)

	r := New()
	r.Use(func(next HandlerFunc[any]) HandlerFunc[any] {
		return func(ctx context.Context, conn *wsconn.Conn, payload any) error {
			events <- event{kind: "mw:" + GetMessageTypeFromCtx(ctx)}
			return next(ctx, conn, payload)
		}
	})
	r.OnError(func(ctx context.Context, conn *wsconn.Conn, err error) {
		events <- event{kind: "error", err: err}
	})
	Handle(r, "add", func(ctx context.Context, conn *wsconn.Conn, in addInput) error {
		events <- event{kind: "add", n: in.N}
		return nil
	})

	ws := serve(t, r)

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "add", "payload": map[string]int{"n": 7}}))
	assert.Equal(t, "mw:add", next(t, events).kind)
	assert.Equal(t, event{kind: "add", n: 7}, next(t, events))

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "nope"}))
	e := next(t, events)
	assert.Equal(t, "error", e.kind)
	assert.ErrorIs(t, e.err, ErrUnknownMessageType)

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "add", "payload": "bad"}))
	e = next(t, events)
	assert.Equal(t, "error", e.kind)
	assert.ErrorIs(t, e.err, ErrInvalidPayload)

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "add"}))
	assert.Equal(t, "mw:add", next(t, events).kind)
	assert.Equal(t, event{kind: "add", n: 0}, next(t, events))
}

func TestGetMessageTypeFromCtxEmpty(t *testing.T) {
	assert.Equal(t, "", GetMessageTypeFromCtx(context.Background()))
}
