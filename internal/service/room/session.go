package room

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sharetube/watchparty/internal/repository/room"
	"github.com/sharetube/watchparty/pkg/videoref"
	"github.com/sharetube/watchparty/pkg/wsconn"
)

func (s service) Connect(ctx context.Context, conn *wsconn.Conn) error {
	if err := s.connRepo.Add(ctx, conn); err != nil {
		return fmt.Errorf("failed to add connection: %w", err)
	}

	return nil
}

// Disconnect leaves the connection's room, if any, and forgets the
// connection. The returned response is nil when there was no room to leave.
func (s service) Disconnect(ctx context.Context, connID string) (*LeaveRoomResponse, error) {
	left, err := s.leaveCurrent(ctx, connID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to leave room on disconnect", "error", err)
	}

	if err := s.connRepo.Remove(ctx, connID); err != nil {
		return left, fmt.Errorf("failed to remove connection: %w", err)
	}

	return left, nil
}

func (s service) leaveCurrent(ctx context.Context, connID string) (*LeaveRoomResponse, error) {
	resp, err := s.LeaveRoom(ctx, &LeaveRoomParams{ConnID: connID})
	if errors.Is(err, ErrNotInRoom) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &resp, nil
}

func (s service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	if err := params.Validate(); err != nil {
		return CreateRoomResponse{}, err
	}

	// reject before touching the current membership
	if _, err := videoref.Parse(params.VideoURL); err != nil {
		return CreateRoomResponse{}, ErrInvalidReference
	}

	left, err := s.leaveCurrent(ctx, params.ConnID)
	if err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to leave current room: %w", err)
	}

	created, err := s.roomRepo.CreateRoom(ctx, &room.CreateRoomParams{
		VideoURL: params.VideoURL,
		HostID:   params.ConnID,
		Username: params.Username,
	})
	if err != nil {
		if errors.Is(err, room.ErrInvalidReference) {
			return CreateRoomResponse{Left: left}, ErrInvalidReference
		}
		return CreateRoomResponse{Left: left}, fmt.Errorf("failed to create room: %w", err)
	}

	if err := s.connRepo.SetRoomCode(ctx, params.ConnID, created.Code); err != nil {
		if _, leaveErr := s.roomRepo.LeaveRoom(ctx, created.Code, params.ConnID); leaveErr != nil {
			s.logger.WarnContext(ctx, "failed to roll back room", "room_code", created.Code, "error", leaveErr)
		}
		return CreateRoomResponse{Left: left}, fmt.Errorf("failed to set room code: %w", err)
	}

	s.publish(ctx, created)

	return CreateRoomResponse{
		Room: roomOf(created),
		Left: left,
	}, nil
}

func (s service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	if err := params.Validate(); err != nil {
		return JoinRoomResponse{}, err
	}

	code := strings.ToUpper(params.RoomCode)

	current, err := s.connRepo.GetRoomCode(ctx, params.ConnID)
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to get current room: %w", err)
	}

	var left *LeaveRoomResponse
	if current != code {
		if _, err := s.roomRepo.GetRoom(ctx, code); err != nil {
			if errors.Is(err, room.ErrRoomNotFound) {
				return JoinRoomResponse{}, ErrRoomNotFound
			}
			return JoinRoomResponse{}, fmt.Errorf("failed to get room: %w", err)
		}

		if left, err = s.leaveCurrent(ctx, params.ConnID); err != nil {
			return JoinRoomResponse{}, fmt.Errorf("failed to leave current room: %w", err)
		}
	}

	joined, err := s.roomRepo.JoinRoom(ctx, &room.JoinRoomParams{
		Code:     code,
		ConnID:   params.ConnID,
		Username: params.Username,
	})
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return JoinRoomResponse{Left: left}, ErrRoomNotFound
		}
		return JoinRoomResponse{Left: left}, fmt.Errorf("failed to join room: %w", err)
	}

	if err := s.connRepo.SetRoomCode(ctx, params.ConnID, joined.Code); err != nil {
		return JoinRoomResponse{Left: left}, fmt.Errorf("failed to set room code: %w", err)
	}

	s.publish(ctx, joined)

	me, _ := joined.Participant(params.ConnID)

	return JoinRoomResponse{
		Room:     roomOf(joined),
		IsHost:   me.IsHost,
		Username: me.Username,
		Conns:    s.connRepo.GetMany(ctx, connIDs(joined.Others(params.ConnID))),
		Left:     left,
	}, nil
}

func (s service) LeaveRoom(ctx context.Context, params *LeaveRoomParams) (LeaveRoomResponse, error) {
	code, err := s.connRepo.GetRoomCode(ctx, params.ConnID)
	if err != nil {
		return LeaveRoomResponse{}, fmt.Errorf("failed to get current room: %w", err)
	}
	if code == "" {
		return LeaveRoomResponse{}, ErrNotInRoom
	}

	if err := s.connRepo.SetRoomCode(ctx, params.ConnID, ""); err != nil {
		return LeaveRoomResponse{}, fmt.Errorf("failed to clear room code: %w", err)
	}

	res, err := s.roomRepo.LeaveRoom(ctx, code, params.ConnID)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) || errors.Is(err, room.ErrParticipantNotFound) {
			return LeaveRoomResponse{}, ErrNotInRoom
		}
		return LeaveRoomResponse{}, fmt.Errorf("failed to leave room: %w", err)
	}

	if res.Room == nil {
		s.unpublish(ctx, code)
		return LeaveRoomResponse{
			RoomCode:      code,
			Username:      res.Left.Username,
			IsRoomDeleted: true,
		}, nil
	}

	s.publish(ctx, *res.Room)

	resp := LeaveRoomResponse{
		RoomCode:     code,
		Username:     res.Left.Username,
		Participants: participantsOf(res.Room.Participants),
		Conns:        s.connRepo.GetMany(ctx, connIDs(res.Room.Participants)),
	}

	if res.NewHostID != "" {
		conn, err := s.connRepo.Get(ctx, res.NewHostID)
		if err != nil {
			s.logger.WarnContext(ctx, "new host connection not found", "conn_id", res.NewHostID, "error", err)
		} else {
			resp.NewHostConn = conn
		}
	}

	return resp, nil
}
