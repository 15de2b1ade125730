package room

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	connInmemory "github.com/sharetube/watchparty/internal/repository/connection/inmemory"
	"github.com/sharetube/watchparty/internal/repository/room/inmemory"
	roomRedis "github.com/sharetube/watchparty/internal/repository/room/redis"
	"github.com/sharetube/watchparty/pkg/wsconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	service  *service
	registry *inmemory.Registry
	redis    *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	t.Cleanup(func() { rc.Close() })

	registry := inmemory.NewRegistry(slog.Default())
	svc := NewService(
		registry,
		connInmemory.NewRepo(slog.Default()),
		roomRedis.NewDirectory(rc, time.Minute, slog.Default()),
		&Config{InstanceID: "test-instance"},
		slog.Default(),
	)

	return &fixture{service: svc, registry: registry, redis: s}
}

func (f *fixture) connect(t *testing.T, id string) *wsconn.Conn {
	t.Helper()

	conn := wsconn.New(id, nil, wsconn.DefaultConfig())
	require.NoError(t, f.service.Connect(context.Background(), conn))

	return conn
}

func ids(conns []*wsconn.Conn) []string {
	result := make([]string, 0, len(conns))
	for _, c := range conns {
		result = append(result, c.ID())
	}

	return result
}

func (f *fixture) createRoom(t *testing.T, connID string) string {
	t.Helper()

	resp, err := f.service.CreateRoom(context.Background(), &CreateRoomParams{
		ConnID:   connID,
		VideoURL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Username: "host",
	})
	require.NoError(t, err)

	return resp.Room.Code
}

func (f *fixture) join(t *testing.T, connID, code string) JoinRoomResponse {
	t.Helper()

	resp, err := f.service.JoinRoom(context.Background(), &JoinRoomParams{
		ConnID:   connID,
		RoomCode: code,
		Username: "user-" + connID,
	})
	require.NoError(t, err)

	return resp
}

func TestRoomLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connect(t, "c1")
	f.connect(t, "c2")
	f.connect(t, "c3")

	createResp, err := f.service.CreateRoom(ctx, &CreateRoomParams{
		ConnID:   "c1",
		VideoURL: "https://youtu.be/dQw4w9WgXcQ",
		Username: "alice",
	})
	require.NoError(t, err)
	assert.Len(t, createResp.Room.Code, 6, "room code must have 6 characters")
	assert.Equal(t, "dQw4w9WgXcQ", createResp.Room.VideoID)
	assert.Equal(t, "youtube", createResp.Room.Platform)
	assert.Nil(t, createResp.Left, "creator was not in a room")
	assert.True(t, f.redis.Exists("room:"+createResp.Room.Code), "room must be published")

	code := createResp.Room.Code

	joinResp := f.join(t, "c2", code)
	assert.False(t, joinResp.IsHost, "joiner must not be host")
	assert.Len(t, joinResp.Room.Participants, 2, "room must contain 2 participants")
	assert.Equal(t, []string{"c1"}, ids(joinResp.Conns), "only the host must be notified")

	joinResp = f.join(t, "c3", code)
	assert.ElementsMatch(t, []string{"c1", "c2"}, ids(joinResp.Conns))

	syncResp, err := f.service.SyncTime(ctx, &SyncTimeParams{SenderID: "c1", RoomCode: code, CurrentTime: 12.5, Seq: 3})
	require.NoError(t, err)
	assert.Equal(t, 12.5, syncResp.CurrentTime)
	assert.Equal(t, uint64(3), syncResp.Seq)
	assert.ElementsMatch(t, []string{"c2", "c3"}, ids(syncResp.Conns), "sender must not receive its own sync")

	playResp, err := f.service.UpdatePlayState(ctx, &UpdatePlayStateParams{SenderID: "c1", RoomCode: code, IsPlaying: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c2", "c3"}, ids(playResp.Conns))

	lateJoiner := f.connect(t, "c4")
	joinResp = f.join(t, lateJoiner.ID(), code)
	assert.Equal(t, 12.5, joinResp.Room.CurrentTime, "snapshot must carry last host time")
	assert.True(t, joinResp.Room.IsPlaying, "snapshot must carry play state")

	leaveResp, err := f.service.LeaveRoom(ctx, &LeaveRoomParams{ConnID: "c1"})
	require.NoError(t, err)
	assert.False(t, leaveResp.IsRoomDeleted)
	assert.Equal(t, "alice", leaveResp.Username)
	require.NotNil(t, leaveResp.NewHostConn, "a new host must be chosen")
	assert.Equal(t, "c2", leaveResp.NewHostConn.ID(), "earliest joined must become host")
	assert.ElementsMatch(t, []string{"c2", "c3", "c4"}, ids(leaveResp.Conns))
	require.Len(t, leaveResp.Participants, 3)
	assert.True(t, leaveResp.Participants[0].IsHost)

	_, err = f.service.SyncTime(ctx, &SyncTimeParams{SenderID: "c1", RoomCode: code, CurrentTime: 1})
	assert.ErrorIs(t, err, ErrPermissionDenied, "former host must lose authority")

	for _, id := range []string{"c3", "c4"} {
		_, err := f.service.LeaveRoom(ctx, &LeaveRoomParams{ConnID: id})
		require.NoError(t, err)
	}
	leaveResp, err = f.service.LeaveRoom(ctx, &LeaveRoomParams{ConnID: "c2"})
	require.NoError(t, err)
	assert.True(t, leaveResp.IsRoomDeleted, "room must be deleted")
	assert.False(t, f.redis.Exists("room:"+code), "room must be removed from directory")

	_, err = f.service.JoinRoom(ctx, &JoinRoomParams{ConnID: "c3", RoomCode: code, Username: "late"})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestHostOnlyActionsFromGuestAreDropped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connect(t, "host")
	f.connect(t, "guest")
	code := f.createRoom(t, "host")
	f.join(t, "guest", code)

	_, err := f.service.SyncTime(ctx, &SyncTimeParams{SenderID: "guest", RoomCode: code, CurrentTime: 99})
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = f.service.UpdatePlayState(ctx, &UpdatePlayStateParams{SenderID: "guest", RoomCode: code, IsPlaying: true})
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = f.service.SyncTime(ctx, &SyncTimeParams{SenderID: "host", RoomCode: "ZZZZZZ", CurrentTime: 99})
	assert.ErrorIs(t, err, ErrPermissionDenied, "unknown room must be dropped like a non host")

	got, err := f.registry.GetRoom(ctx, code)
	require.NoError(t, err)
	assert.Zero(t, got.CurrentTime, "time must not change")
	assert.False(t, got.IsPlaying, "play state must not change")
}

func TestCreateRoomInvalidReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connect(t, "c1")
	f.connect(t, "c2")
	code := f.createRoom(t, "c1")
	f.join(t, "c2", code)

	resp, err := f.service.CreateRoom(ctx, &CreateRoomParams{ConnID: "c2", VideoURL: "not a video!", Username: "bob"})
	assert.ErrorIs(t, err, ErrInvalidReference)
	assert.Nil(t, resp.Left, "invalid creation must not leave the current room")

	participants, err := f.registry.ListParticipants(ctx, code)
	require.NoError(t, err)
	assert.Len(t, participants, 2)
}

func TestCreateRoomValidatesParams(t *testing.T) {
	f := newFixture(t)
	f.connect(t, "c1")

	_, err := f.service.CreateRoom(context.Background(), &CreateRoomParams{ConnID: "c1", VideoURL: "shroud"})
	assert.Error(t, err, "empty username must be rejected")

	_, err = f.service.JoinRoom(context.Background(), &JoinRoomParams{ConnID: "c1", RoomCode: "AB-1", Username: "x"})
	assert.Error(t, err, "malformed code must be rejected")
}

func TestJoinAnotherRoomLeavesCurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		f.connect(t, id)
	}
	first := f.createRoom(t, "a")
	second := f.createRoom(t, "b")
	f.join(t, "c", first)

	resp := f.join(t, "a", second)
	require.NotNil(t, resp.Left, "host must leave its first room")
	assert.Equal(t, first, resp.Left.RoomCode)
	require.NotNil(t, resp.Left.NewHostConn)
	assert.Equal(t, "c", resp.Left.NewHostConn.ID())
	assert.Equal(t, []string{"b"}, ids(resp.Conns))

	assert.True(t, f.registry.IsHost(ctx, first, "c"))
}

func TestRejoinSameRoomKeepsMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connect(t, "a")
	code := f.createRoom(t, "a")

	resp := f.join(t, "a", code)
	assert.Nil(t, resp.Left, "rejoining the current room must not leave it")
	assert.True(t, resp.IsHost, "host keeps the role on rejoin")

	_, err := f.registry.GetRoom(ctx, code)
	assert.NoError(t, err, "room must survive")
}

func TestJoinUnknownRoomKeepsCurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connect(t, "a")
	code := f.createRoom(t, "a")

	_, err := f.service.JoinRoom(ctx, &JoinRoomParams{ConnID: "a", RoomCode: "ZZZZZZ", Username: "a"})
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.True(t, f.registry.IsHost(ctx, code, "a"))
}

func TestDisconnect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connect(t, "a")
	f.connect(t, "b")
	code := f.createRoom(t, "a")
	f.join(t, "b", code)

	left, err := f.service.Disconnect(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, left)
	assert.Equal(t, "b", left.NewHostConn.ID())
	assert.Equal(t, []string{"b"}, ids(left.Conns))

	stats := f.service.Stats()
	assert.Equal(t, Stats{Rooms: 1, Participants: 1, Connections: 1}, stats)

	left, err = f.service.Disconnect(ctx, "b")
	require.NoError(t, err)
	assert.True(t, left.IsRoomDeleted)

	f.connect(t, "c")
	left, err = f.service.Disconnect(ctx, "c")
	require.NoError(t, err)
	assert.Nil(t, left, "connection outside a room has nothing to leave")
}

func TestLeaveWithoutRoom(t *testing.T) {
	f := newFixture(t)
	f.connect(t, "a")

	_, err := f.service.LeaveRoom(context.Background(), &LeaveRoomParams{ConnID: "a"})
	assert.ErrorIs(t, err, ErrNotInRoom)
}

func TestGetRoomSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connect(t, "a")
	code := f.createRoom(t, "a")

	summary, err := f.service.GetRoomSummary(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Participants)
	assert.Equal(t, "test-instance", summary.InstanceID)

	// a room owned by another instance is only visible through the directory
	f.redis.HSet("room:REMOTE", "code", "REMOTE", "platform", "twitch", "video_id", "channel:foo", "participants", "4", "instance_id", "other", "updated_at", "0")
	summary, err = f.service.GetRoomSummary(ctx, "remote")
	require.NoError(t, err)
	assert.Equal(t, "other", summary.InstanceID)
	assert.Equal(t, 4, summary.Participants)

	_, err = f.service.GetRoomSummary(ctx, "NONE00")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	_, err = f.service.GetRoomSummary(ctx, "bad code")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRefreshDirectory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connect(t, "a")
	code := f.createRoom(t, "a")

	f.redis.Del("room:" + code)
	assert.Equal(t, 1, f.service.RefreshDirectory(ctx))
	assert.True(t, f.redis.Exists("room:"+code))

	list, err := f.service.ListRooms(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, code, list[0].Code)
}
