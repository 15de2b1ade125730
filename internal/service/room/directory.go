package room

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sharetube/watchparty/internal/repository/room"
)

func (s service) publish(ctx context.Context, r room.Room) {
	if err := s.directory.Publish(ctx, room.SummaryOf(r, s.instanceID)); err != nil {
		s.logger.WarnContext(ctx, "failed to publish room", "room_code", r.Code, "error", err)
	}
}

func (s service) unpublish(ctx context.Context, code string) {
	if err := s.directory.Remove(ctx, code); err != nil {
		s.logger.WarnContext(ctx, "failed to remove room from directory", "room_code", code, "error", err)
	}
}

// GetRoomSummary looks in the local registry first and then in the
// directory shared with other instances.
func (s service) GetRoomSummary(ctx context.Context, code string) (room.Summary, error) {
	if err := validation.Validate(code, RoomCodeRule...); err != nil {
		return room.Summary{}, ErrRoomNotFound
	}
	code = strings.ToUpper(code)

	local, err := s.roomRepo.GetRoom(ctx, code)
	if err == nil {
		return room.SummaryOf(local, s.instanceID), nil
	}
	if !errors.Is(err, room.ErrRoomNotFound) {
		return room.Summary{}, fmt.Errorf("failed to get room: %w", err)
	}

	remote, err := s.directory.Lookup(ctx, code)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return room.Summary{}, ErrRoomNotFound
		}
		return room.Summary{}, fmt.Errorf("failed to look up room: %w", err)
	}

	return remote, nil
}

func (s service) ListRooms(ctx context.Context, limit int) ([]room.Summary, error) {
	summaries, err := s.directory.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	return summaries, nil
}

// RefreshDirectory republishes every local room so long lived rooms do not
// expire from the directory.
func (s service) RefreshDirectory(ctx context.Context) int {
	rooms := s.roomRepo.Rooms()
	for _, r := range rooms {
		s.publish(ctx, r)
	}

	return len(rooms)
}

func (s service) Stats() Stats {
	rooms, participants := s.roomRepo.Stats()

	return Stats{
		Rooms:        rooms,
		Participants: participants,
		Connections:  s.connRepo.Count(),
	}
}
