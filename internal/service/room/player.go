package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/sharetube/watchparty/internal/repository/room"
)

// isHostRejection reports errors meaning the sender is not the host of the
// room it named.
func isHostRejection(err error) bool {
	return errors.Is(err, room.ErrNotHost) || errors.Is(err, room.ErrRoomNotFound)
}

// SyncTime records the host's position. Senders that are not the host of
// the named room get ErrPermissionDenied and nothing changes.
func (s service) SyncTime(ctx context.Context, params *SyncTimeParams) (SyncTimeResponse, error) {
	updated, err := s.roomRepo.UpdateTimeAsHost(ctx, params.RoomCode, params.SenderID, params.CurrentTime)
	if err != nil {
		if isHostRejection(err) {
			return SyncTimeResponse{}, ErrPermissionDenied
		}
		return SyncTimeResponse{}, fmt.Errorf("failed to update time: %w", err)
	}

	return SyncTimeResponse{
		CurrentTime: params.CurrentTime,
		Seq:         params.Seq,
		Conns:       s.connRepo.GetMany(ctx, connIDs(updated.Others(params.SenderID))),
	}, nil
}

func (s service) UpdatePlayState(ctx context.Context, params *UpdatePlayStateParams) (UpdatePlayStateResponse, error) {
	updated, err := s.roomRepo.UpdatePlayStateAsHost(ctx, params.RoomCode, params.SenderID, params.IsPlaying)
	if err != nil {
		if isHostRejection(err) {
			return UpdatePlayStateResponse{}, ErrPermissionDenied
		}
		return UpdatePlayStateResponse{}, fmt.Errorf("failed to update play state: %w", err)
	}

	s.publish(ctx, updated)

	return UpdatePlayStateResponse{
		Conns: s.connRepo.GetMany(ctx, connIDs(updated.Others(params.SenderID))),
	}, nil
}
