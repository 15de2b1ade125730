package controller

import (
	"context"
	"fmt"

	"github.com/sharetube/watchparty/internal/protocol"
	"github.com/sharetube/watchparty/internal/service/room"
	"github.com/sharetube/watchparty/pkg/wsconn"
)

func toParticipants(ps []room.Participant) []protocol.Participant {
	result := make([]protocol.Participant, 0, len(ps))
	for _, p := range ps {
		result = append(result, protocol.Participant{
			ID:       p.ID,
			Username: p.Username,
			IsHost:   p.IsHost,
		})
	}

	return result
}

func (c controller) handleCreateRoom(ctx context.Context, conn *wsconn.Conn, input protocol.CreateRoomPayload) error {
	createRoomResp, err := c.roomService.CreateRoom(ctx, &room.CreateRoomParams{
		ConnID:   conn.ID(),
		VideoURL: input.VideoURL,
		Username: input.Username,
	})
	c.notifyLeft(ctx, createRoomResp.Left)
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	c.metrics.IncRoomsCreated()
	c.logger.InfoContext(ctx, "room created", "room_code", createRoomResp.Room.Code, "video_id", createRoomResp.Room.VideoID)

	c.writeToConn(ctx, conn, &protocol.Output{
		Type: protocol.EventRoomCreated,
		Payload: protocol.RoomCreatedPayload{
			RoomCode: createRoomResp.Room.Code,
			VideoID:  createRoomResp.Room.VideoID,
			Platform: createRoomResp.Room.Platform,
		},
	})

	return nil
}

func (c controller) handleJoinRoom(ctx context.Context, conn *wsconn.Conn, input protocol.JoinRoomPayload) error {
	joinRoomResp, err := c.roomService.JoinRoom(ctx, &room.JoinRoomParams{
		ConnID:   conn.ID(),
		RoomCode: input.RoomCode,
		Username: input.Username,
	})
	c.notifyLeft(ctx, joinRoomResp.Left)
	if err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}

	participants := toParticipants(joinRoomResp.Room.Participants)

	c.writeToConn(ctx, conn, &protocol.Output{
		Type: protocol.EventRoomJoined,
		Payload: protocol.RoomJoinedPayload{
			RoomCode:     joinRoomResp.Room.Code,
			VideoID:      joinRoomResp.Room.VideoID,
			Platform:     joinRoomResp.Room.Platform,
			Participants: participants,
			IsHost:       joinRoomResp.IsHost,
			CurrentTime:  joinRoomResp.Room.CurrentTime,
			IsPlaying:    joinRoomResp.Room.IsPlaying,
		},
	})

	c.broadcast(ctx, joinRoomResp.Conns, &protocol.Output{
		Type: protocol.EventUserJoined,
		Payload: protocol.MembershipPayload{
			Username:     joinRoomResp.Username,
			Participants: participants,
		},
	})

	return nil
}

func (c controller) handleLeaveRoom(ctx context.Context, conn *wsconn.Conn, _ protocol.Empty) error {
	leaveRoomResp, err := c.roomService.LeaveRoom(ctx, &room.LeaveRoomParams{
		ConnID: conn.ID(),
	})
	if err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}

	c.notifyLeft(ctx, &leaveRoomResp)

	return nil
}

// notifyLeft tells the remaining members about a departure and the promoted
// member about its new role.
func (c controller) notifyLeft(ctx context.Context, left *room.LeaveRoomResponse) {
	if left == nil {
		return
	}

	if left.IsRoomDeleted {
		c.metrics.IncRoomsDeleted()
		c.logger.InfoContext(ctx, "room deleted", "room_code", left.RoomCode)
		return
	}

	c.broadcast(ctx, left.Conns, &protocol.Output{
		Type: protocol.EventUserLeft,
		Payload: protocol.MembershipPayload{
			Username:     left.Username,
			Participants: toParticipants(left.Participants),
		},
	})

	if left.NewHostConn != nil {
		c.metrics.IncHostMigrations()
		c.logger.InfoContext(ctx, "host migrated", "room_code", left.RoomCode, "new_host_id", left.NewHostConn.ID())
		c.writeToConn(ctx, left.NewHostConn, &protocol.Output{
			Type:    protocol.EventBecameHost,
			Payload: protocol.Empty{},
		})
	}
}

func (c controller) handleSyncTime(ctx context.Context, conn *wsconn.Conn, input protocol.SyncTimePayload) error {
	syncTimeResp, err := c.roomService.SyncTime(ctx, &room.SyncTimeParams{
		SenderID:    conn.ID(),
		RoomCode:    input.RoomCode,
		CurrentTime: input.CurrentTime,
		Seq:         input.Seq,
	})
	if err != nil {
		return fmt.Errorf("failed to sync time: %w", err)
	}

	c.broadcast(ctx, syncTimeResp.Conns, &protocol.Output{
		Type: protocol.EventSyncUpdate,
		Payload: protocol.SyncUpdatePayload{
			CurrentTime: syncTimeResp.CurrentTime,
			Seq:         syncTimeResp.Seq,
		},
	})

	return nil
}

func (c controller) handlePlay(ctx context.Context, conn *wsconn.Conn, input protocol.PlayPausePayload) error {
	return c.updatePlayState(ctx, conn, input.RoomCode, true)
}

func (c controller) handlePause(ctx context.Context, conn *wsconn.Conn, input protocol.PlayPausePayload) error {
	return c.updatePlayState(ctx, conn, input.RoomCode, false)
}

func (c controller) updatePlayState(ctx context.Context, conn *wsconn.Conn, roomCode string, isPlaying bool) error {
	updatePlayStateResp, err := c.roomService.UpdatePlayState(ctx, &room.UpdatePlayStateParams{
		SenderID:  conn.ID(),
		RoomCode:  roomCode,
		IsPlaying: isPlaying,
	})
	if err != nil {
		return fmt.Errorf("failed to update play state: %w", err)
	}

	eventType := protocol.EventPauseVideo
	if isPlaying {
		eventType = protocol.EventPlayVideo
	}

	c.broadcast(ctx, updatePlayStateResp.Conns, &protocol.Output{
		Type:    eventType,
		Payload: protocol.Empty{},
	})

	return nil
}
