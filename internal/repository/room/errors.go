package room

import (
	"errors"
	"fmt"

	"github.com/sharetube/watchparty/pkg/videoref"
)

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrNotHost             = errors.New("participant is not the host")
	ErrCodeSpaceExhausted  = errors.New("could not generate a free room code")
	ErrInvalidReference    = fmt.Errorf("room: %w", videoref.ErrInvalidReference)
)
