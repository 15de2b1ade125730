package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/sharetube/watchparty/internal/drift"
	"github.com/sharetube/watchparty/internal/protocol"
	"github.com/sharetube/watchparty/pkg/videoref"
)

// session is the state of one connection. Everything here runs on the
// event loop goroutine.
type session struct {
	client  *Client
	ws      *websocket.Conn
	inbound chan protocol.Input
	logger  *slog.Logger

	rejoinAttempted bool
	rejoinPending   bool
	username        string

	roomCode       string
	platform       string
	videoID        string
	isHost         bool
	isPlaying      bool
	participants   []protocol.Participant
	seq            uint64
	loading        <-chan struct{}
	initialTime    float64
	initialPlaying bool
	lastError      string

	display clockwork.Ticker
	sync    clockwork.Ticker
}

func tickC(t clockwork.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}

	return t.Chan()
}

func (s *session) write(messageType string, payload any) error {
	s.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.ws.WriteJSON(protocol.Output{Type: messageType, Payload: payload}); err != nil {
		return fmt.Errorf("failed to write %s: %w", messageType, err)
	}

	return nil
}

// start attempts the one automatic rejoin of this connection, or the
// configured action when there is nothing to rejoin.
func (s *session) start(ctx context.Context) error {
	if s.client.store != nil && !s.rejoinAttempted {
		stored, found, err := s.client.store.Load()
		if err != nil {
			s.logger.WarnContext(ctx, "failed to load stored room", "error", err)
		}
		if found {
			s.rejoinAttempted = true
			s.rejoinPending = true
			s.username = stored.Username
			s.logger.InfoContext(ctx, "rejoining room", "room_code", stored.RoomCode)

			return s.write(protocol.EventJoinRoom, protocol.JoinRoomPayload{
				RoomCode: stored.RoomCode,
				Username: stored.Username,
			})
		}
	}

	return s.runAction(ctx)
}

func (s *session) runAction(ctx context.Context) error {
	if s.client.actionDone {
		return nil
	}

	cfg := s.client.cfg
	s.username = cfg.Username

	switch {
	case cfg.VideoURL != "":
		s.logger.InfoContext(ctx, "creating room", "video_url", cfg.VideoURL)
		return s.write(protocol.EventCreateRoom, protocol.CreateRoomPayload{
			VideoURL: cfg.VideoURL,
			Username: cfg.Username,
		})
	case cfg.RoomCode != "":
		s.logger.InfoContext(ctx, "joining room", "room_code", cfg.RoomCode)
		return s.write(protocol.EventJoinRoom, protocol.JoinRoomPayload{
			RoomCode: cfg.RoomCode,
			Username: cfg.Username,
		})
	default:
		return nil
	}
}

func (s *session) loop(ctx context.Context, readErr <-chan error) error {
	for {
		var err error

		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return fmt.Errorf("failed to read: %w", err)
		case in := <-s.inbound:
			err = s.handle(ctx, in)
		case <-s.loading:
			s.onBackendSettled(ctx)
		case <-tickC(s.display):
		case <-tickC(s.sync):
			err = s.sendSync()
		case cmd := <-s.client.commands:
			err = s.handleCommand(ctx, cmd)
		}

		if err != nil {
			return err
		}
		s.publish()
	}
}

func decode[T any](in protocol.Input) (T, error) {
	var payload T
	if len(in.Payload) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(in.Payload, &payload); err != nil {
		return payload, fmt.Errorf("failed to decode %s: %w", in.Type, err)
	}

	return payload, nil
}

func (s *session) handle(ctx context.Context, in protocol.Input) error {
	switch in.Type {
	case protocol.EventRoomCreated:
		p, err := decode[protocol.RoomCreatedPayload](in)
		if err != nil {
			return err
		}
		s.remember(ctx, p.RoomCode)
		s.participants = []protocol.Participant{{Username: s.username, IsHost: true}}
		s.enterRoom(ctx, p.RoomCode, p.Platform, p.VideoID, true, 0, false)

	case protocol.EventRoomJoined:
		p, err := decode[protocol.RoomJoinedPayload](in)
		if err != nil {
			return err
		}
		s.remember(ctx, p.RoomCode)
		s.participants = p.Participants
		s.enterRoom(ctx, p.RoomCode, p.Platform, p.VideoID, p.IsHost, p.CurrentTime, p.IsPlaying)

	case protocol.EventUserJoined, protocol.EventUserLeft:
		p, err := decode[protocol.MembershipPayload](in)
		if err != nil {
			return err
		}
		s.participants = p.Participants
		s.logger.InfoContext(ctx, "membership changed", "event", in.Type, "username", p.Username)

	case protocol.EventBecameHost:
		if s.roomCode == "" {
			return nil
		}
		s.isHost = true
		s.seq = 0
		s.client.corrector.Reset()
		s.client.adapter.SetPlaybackRate(1)
		s.logger.InfoContext(ctx, "became host", "room_code", s.roomCode)

	case protocol.EventSyncUpdate:
		if s.roomCode == "" || s.isHost || !s.client.adapter.Ready() {
			return nil
		}
		p, err := decode[protocol.SyncUpdatePayload](in)
		if err != nil {
			return err
		}
		action := s.client.corrector.Report(p.CurrentTime, p.Seq)
		s.logger.DebugContext(ctx, "sync report", "host_time", p.CurrentTime, "seq", p.Seq, "action", action.String())

	case protocol.EventPlayVideo, protocol.EventPauseVideo:
		if s.roomCode == "" || s.isHost {
			return nil
		}
		s.isPlaying = in.Type == protocol.EventPlayVideo
		s.initialPlaying = s.isPlaying
		if s.isPlaying {
			s.client.adapter.Play()
		} else {
			s.client.adapter.Pause()
		}

	case protocol.EventError:
		p, err := decode[protocol.ErrorPayload](in)
		if err != nil {
			return err
		}
		s.lastError = p.Message
		s.logger.WarnContext(ctx, "server error", "message", p.Message)
		s.forget(ctx)

		if s.rejoinPending {
			s.rejoinPending = false
			return s.runAction(ctx)
		}

	default:
		s.logger.DebugContext(ctx, "ignoring event", "type", in.Type)
	}

	return nil
}

func (s *session) remember(ctx context.Context, roomCode string) {
	s.client.actionDone = true
	s.rejoinPending = false
	s.lastError = ""

	if s.client.store == nil {
		return
	}
	if err := s.client.store.Save(RoomState{RoomCode: roomCode, Username: s.username}); err != nil {
		s.logger.WarnContext(ctx, "failed to store room", "error", err)
	}
}

func (s *session) forget(ctx context.Context) {
	if s.client.store == nil {
		return
	}
	if err := s.client.store.Clear(); err != nil {
		s.logger.WarnContext(ctx, "failed to clear stored room", "error", err)
	}
}

func (s *session) enterRoom(ctx context.Context, code, platform, videoID string, isHost bool, initialTime float64, initialPlaying bool) {
	if s.roomCode != "" && s.roomCode != code {
		s.teardown()
	}

	s.roomCode = code
	s.platform = platform
	s.videoID = videoID
	s.isHost = isHost
	s.isPlaying = initialPlaying
	s.initialTime = initialTime
	s.initialPlaying = initialPlaying
	s.seq = 0
	s.client.corrector.Reset()

	ref, err := videoref.FromWire(platform, videoID)
	if err != nil {
		s.lastError = err.Error()
		s.logger.ErrorContext(ctx, "unplayable room video", "platform", platform, "video_id", videoID, "error", err)
		return
	}
	s.loading = s.client.adapter.Load(ctx, ref)

	if s.display == nil {
		s.display = s.client.clock.NewTicker(drift.TimeUpdateInterval)
	}
	if s.sync == nil {
		s.sync = s.client.clock.NewTicker(drift.SyncInterval)
	}
}

// onBackendSettled applies the room's position once the backend is ready.
func (s *session) onBackendSettled(ctx context.Context) {
	s.loading = nil

	adapter := s.client.adapter
	if err := adapter.Err(); err != nil {
		s.lastError = err.Error()
		return
	}
	if !adapter.Ready() {
		return
	}

	if s.initialTime > 0 {
		adapter.SeekTo(s.initialTime)
	}
	if s.initialPlaying {
		adapter.Play()
	}
	s.logger.InfoContext(ctx, "player ready", "profile", adapter.Profile().String())
}

func (s *session) sendSync() error {
	if !s.isHost || s.roomCode == "" || !s.client.adapter.Ready() {
		return nil
	}

	s.seq++

	return s.write(protocol.EventSyncTime, protocol.SyncTimePayload{
		RoomCode:    s.roomCode,
		CurrentTime: s.client.adapter.CurrentTime(),
		Seq:         s.seq,
	})
}

func (s *session) handleCommand(ctx context.Context, cmd command) error {
	if s.roomCode == "" {
		s.logger.DebugContext(ctx, "command ignored outside a room", "command", cmd.kind)
		return nil
	}

	if cmd.kind == cmdLeave {
		if err := s.write(protocol.EventLeaveRoom, protocol.Empty{}); err != nil {
			return err
		}
		s.forget(ctx)
		s.teardown()
		return nil
	}

	if !s.isHost {
		s.logger.InfoContext(ctx, "only the host controls playback")
		return nil
	}

	adapter := s.client.adapter
	switch cmd.kind {
	case cmdPlay:
		adapter.Play()
		s.isPlaying = true
		return s.write(protocol.EventPlay, protocol.PlayPausePayload{RoomCode: s.roomCode})
	case cmdPause:
		adapter.Pause()
		s.isPlaying = false
		return s.write(protocol.EventPause, protocol.PlayPausePayload{RoomCode: s.roomCode})
	case cmdSeek:
		adapter.SeekTo(cmd.seconds)
	}

	return nil
}

// teardown leaves the room locally: timers stop, pending events are dropped
// and the backend is released.
func (s *session) teardown() {
	if s.display != nil {
		s.display.Stop()
		s.display = nil
	}
	if s.sync != nil {
		s.sync.Stop()
		s.sync = nil
	}

	for drained := false; !drained; {
		select {
		case <-s.inbound:
		default:
			drained = true
		}
	}

	s.client.adapter.Teardown()
	s.client.corrector.Reset()

	s.roomCode = ""
	s.platform = ""
	s.videoID = ""
	s.isHost = false
	s.isPlaying = false
	s.participants = nil
	s.seq = 0
	s.loading = nil
	s.initialTime = 0
	s.initialPlaying = false

	s.publish()
}

func (s *session) publish() {
	adapter := s.client.adapter
	var sync drift.State
	if adapter.Ready() && !s.isHost {
		sync = s.client.corrector.Observe()
	}

	s.client.updateStatus(func(st *Status) {
		st.RoomCode = s.roomCode
		st.Platform = s.platform
		st.VideoID = s.videoID
		st.Username = s.username
		st.IsHost = s.isHost
		st.IsPlaying = s.isPlaying
		st.Participants = s.participants
		st.Backend = adapter.Status()
		st.LocalTime = adapter.CurrentTime()
		st.PlaybackRate = adapter.PlaybackRate()
		st.Sync = sync
		st.LastError = s.lastError
	})
}
