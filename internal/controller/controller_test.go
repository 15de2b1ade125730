package controller

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/platform/metrics"
	"github.com/sharetube/watchparty/internal/protocol"
	connInmemory "github.com/sharetube/watchparty/internal/repository/connection/inmemory"
	"github.com/sharetube/watchparty/internal/repository/room/inmemory"
	roomRedis "github.com/sharetube/watchparty/internal/repository/room/redis"
	"github.com/sharetube/watchparty/internal/service/room"
	"github.com/sharetube/watchparty/pkg/wsconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVideoURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rc.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := room.NewService(
		inmemory.NewRegistry(logger),
		connInmemory.NewRepo(logger),
		roomRedis.NewDirectory(rc, time.Minute, logger),
		&room.Config{InstanceID: "test"},
		logger,
	)

	ctrl := NewController(svc, metrics.New(), wsconn.DefaultConfig(), logger)
	server := httptest.NewServer(ctrl.GetMux())
	t.Cleanup(server.Close)

	return server
}

type testClient struct {
	t  *testing.T
	ws *websocket.Conn
}

func dial(t *testing.T, server *httptest.Server) *testClient {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	return &testClient{t: t, ws: ws}
}

func (c *testClient) send(messageType string, payload any) {
	c.t.Helper()

	require.NoError(c.t, c.ws.WriteJSON(protocol.Output{Type: messageType, Payload: payload}))
}

func (c *testClient) read() protocol.Input {
	c.t.Helper()

	require.NoError(c.t, c.ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var in protocol.Input
	require.NoError(c.t, c.ws.ReadJSON(&in))

	return in
}

func readAs[T any](c *testClient, expectedType string) T {
	c.t.Helper()

	in := c.read()
	require.Equal(c.t, expectedType, in.Type, "payload: %s", in.Payload)

	var payload T
	if len(in.Payload) > 0 {
		require.NoError(c.t, json.Unmarshal(in.Payload, &payload))
	}

	return payload
}

func TestController_SessionFlow(t *testing.T) {
	server := newTestServer(t)
	host := dial(t, server)
	guest := dial(t, server)

	host.send(protocol.EventCreateRoom, protocol.CreateRoomPayload{VideoURL: testVideoURL, Username: "alice"})
	created := readAs[protocol.RoomCreatedPayload](host, protocol.EventRoomCreated)
	assert.Len(t, created.RoomCode, 6)
	assert.Equal(t, "dQw4w9WgXcQ", created.VideoID)
	assert.Equal(t, "youtube", created.Platform)

	guest.send(protocol.EventJoinRoom, protocol.JoinRoomPayload{RoomCode: strings.ToLower(created.RoomCode), Username: "bob"})
	joined := readAs[protocol.RoomJoinedPayload](guest, protocol.EventRoomJoined)
	assert.Equal(t, created.RoomCode, joined.RoomCode)
	assert.False(t, joined.IsHost)
	require.Len(t, joined.Participants, 2)
	assert.Equal(t, "alice", joined.Participants[0].Username)
	assert.True(t, joined.Participants[0].IsHost)

	userJoined := readAs[protocol.MembershipPayload](host, protocol.EventUserJoined)
	assert.Equal(t, "bob", userJoined.Username)
	assert.Len(t, userJoined.Participants, 2)

	host.send(protocol.EventSyncTime, protocol.SyncTimePayload{RoomCode: created.RoomCode, CurrentTime: 12.5, Seq: 1})
	update := readAs[protocol.SyncUpdatePayload](guest, protocol.EventSyncUpdate)
	assert.Equal(t, 12.5, update.CurrentTime)
	assert.Equal(t, uint64(1), update.Seq)

	// guest host actions are dropped without a reply
	guest.send(protocol.EventSyncTime, protocol.SyncTimePayload{RoomCode: created.RoomCode, CurrentTime: 99})
	guest.send(protocol.EventPlay, protocol.PlayPausePayload{RoomCode: created.RoomCode})
	guest.send("bogus", nil)
	errPayload := readAs[protocol.ErrorPayload](guest, protocol.EventError)
	assert.Equal(t, "unknown message type", errPayload.Message)

	host.send(protocol.EventPlay, protocol.PlayPausePayload{RoomCode: created.RoomCode})
	readAs[protocol.Empty](guest, protocol.EventPlayVideo)

	host.send(protocol.EventLeaveRoom, nil)
	left := readAs[protocol.MembershipPayload](guest, protocol.EventUserLeft)
	assert.Equal(t, "alice", left.Username)
	require.Len(t, left.Participants, 1)
	assert.True(t, left.Participants[0].IsHost)
	readAs[protocol.Empty](guest, protocol.EventBecameHost)

	// promoted guest can now drive playback for a new member
	late := dial(t, server)
	late.send(protocol.EventJoinRoom, protocol.JoinRoomPayload{RoomCode: created.RoomCode, Username: "carol"})
	lateJoined := readAs[protocol.RoomJoinedPayload](late, protocol.EventRoomJoined)
	assert.True(t, lateJoined.IsPlaying)
	assert.Equal(t, 12.5, lateJoined.CurrentTime)
	readAs[protocol.MembershipPayload](guest, protocol.EventUserJoined)

	guest.send(protocol.EventPause, protocol.PlayPausePayload{RoomCode: created.RoomCode})
	readAs[protocol.Empty](late, protocol.EventPauseVideo)
}

func TestController_ErrorEvents(t *testing.T) {
	server := newTestServer(t)
	client := dial(t, server)

	client.send(protocol.EventCreateRoom, protocol.CreateRoomPayload{VideoURL: "not a video!", Username: "alice"})
	assert.Equal(t, "invalid video url", readAs[protocol.ErrorPayload](client, protocol.EventError).Message)

	client.send(protocol.EventJoinRoom, protocol.JoinRoomPayload{RoomCode: "ZZZZZZ", Username: "alice"})
	assert.Equal(t, "room not found", readAs[protocol.ErrorPayload](client, protocol.EventError).Message)

	client.send(protocol.EventJoinRoom, protocol.JoinRoomPayload{RoomCode: "abc", Username: "alice"})
	assert.Contains(t, readAs[protocol.ErrorPayload](client, protocol.EventError).Message, "roomCode")

	require.NoError(t, client.ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"join-room","payload":"nope"}`)))
	assert.Equal(t, "invalid payload", readAs[protocol.ErrorPayload](client, protocol.EventError).Message)

	// leaving without a room is ignored, the next reply belongs to create
	client.send(protocol.EventLeaveRoom, nil)
	client.send(protocol.EventCreateRoom, protocol.CreateRoomPayload{VideoURL: "twitch.tv/videos/123456", Username: "alice"})
	created := readAs[protocol.RoomCreatedPayload](client, protocol.EventRoomCreated)
	assert.Equal(t, "twitch", created.Platform)
	assert.Equal(t, "video:123456", created.VideoID)
}

func TestController_DisconnectMigratesHost(t *testing.T) {
	server := newTestServer(t)
	host := dial(t, server)
	guest := dial(t, server)

	host.send(protocol.EventCreateRoom, protocol.CreateRoomPayload{VideoURL: testVideoURL, Username: "alice"})
	created := readAs[protocol.RoomCreatedPayload](host, protocol.EventRoomCreated)

	guest.send(protocol.EventJoinRoom, protocol.JoinRoomPayload{RoomCode: created.RoomCode, Username: "bob"})
	readAs[protocol.RoomJoinedPayload](guest, protocol.EventRoomJoined)
	readAs[protocol.MembershipPayload](host, protocol.EventUserJoined)

	require.NoError(t, host.ws.Close())

	left := readAs[protocol.MembershipPayload](guest, protocol.EventUserLeft)
	assert.Equal(t, "alice", left.Username)
	readAs[protocol.Empty](guest, protocol.EventBecameHost)
}

func TestController_HTTPEndpoints(t *testing.T) {
	server := newTestServer(t)
	client := dial(t, server)

	client.send(protocol.EventCreateRoom, protocol.CreateRoomPayload{VideoURL: testVideoURL, Username: "alice"})
	created := readAs[protocol.RoomCreatedPayload](client, protocol.EventRoomCreated)

	get := func(path string) (int, string) {
		t.Helper()

		resp, err := http.Get(server.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		return resp.StatusCode, string(body)
	}

	status, body := get("/health")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	status, body = get("/api/v1/rooms/" + created.RoomCode)
	assert.Equal(t, http.StatusOK, status)
	var summary map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &summary))
	assert.Equal(t, created.RoomCode, summary["roomCode"])
	assert.Equal(t, float64(1), summary["participants"])

	status, _ = get("/api/v1/rooms/QQQQQQ")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = get("/api/v1/rooms/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, created.RoomCode)

	status, _ = get("/api/v1/rooms/?limit=zero")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = get("/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "watchparty_rooms_created_total 1")
	assert.Contains(t, body, "watchparty_active_rooms 1")
	assert.Contains(t, body, "watchparty_active_connections 1")
}
