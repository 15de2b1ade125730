package inmemory

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/sharetube/watchparty/internal/repository/room"
	"github.com/sharetube/watchparty/pkg/videoref"
)

const maxCodeAttempts = 1000

type roomState struct {
	mu sync.Mutex
	// set under mu when the last participant leaves
	deleted      bool
	snapshot     room.Room
	participants []room.Participant
}

func (s *roomState) copy() room.Room {
	r := s.snapshot
	r.Participants = slices.Clone(s.participants)
	return r
}

func (s *roomState) indexOf(connID string) int {
	return slices.IndexFunc(s.participants, func(p room.Participant) bool {
		return p.ID == connID
	})
}

// Registry is the authoritative set of live rooms on this instance. The map
// lock only guards membership of the map; each room is serialized by its own
// lock so work on different rooms never contends.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]*roomState
	newCode func() (string, error)
	clock   clockwork.Clock
	logger  *slog.Logger
}

type Option func(*Registry)

func WithCodeGenerator(gen func() (string, error)) Option {
	return func(r *Registry) {
		r.newCode = gen
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(r *Registry) {
		r.clock = clock
	}
}

func NewRegistry(logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		rooms:   make(map[string]*roomState),
		newCode: generateCode,
		clock:   clockwork.NewRealClock(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (r *Registry) get(code string) (*roomState, error) {
	r.mu.RLock()
	s, ok := r.rooms[normalizeCode(code)]
	r.mu.RUnlock()

	if !ok {
		return nil, room.ErrRoomNotFound
	}

	return s, nil
}

// withRoom runs fn holding the room lock. Rooms deleted while the caller
// waited for the lock report not found.
func (r *Registry) withRoom(code string, fn func(s *roomState) error) error {
	s, err := r.get(code)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleted {
		return room.ErrRoomNotFound
	}

	return fn(s)
}

func (r *Registry) CreateRoom(ctx context.Context, params *room.CreateRoomParams) (room.Room, error) {
	r.logger.DebugContext(ctx, "called", "params", params)

	ref, err := videoref.Parse(params.VideoURL)
	if err != nil {
		return room.Room{}, room.ErrInvalidReference
	}

	now := r.clock.Now()
	host := room.Participant{ID: params.HostID, Username: params.Username, IsHost: true}

	r.mu.Lock()
	defer r.mu.Unlock()

	var code string
	for attempt := 0; ; attempt++ {
		if attempt == maxCodeAttempts {
			return room.Room{}, room.ErrCodeSpaceExhausted
		}

		code, err = r.newCode()
		if err != nil {
			return room.Room{}, fmt.Errorf("failed to generate room code: %w", err)
		}
		if _, taken := r.rooms[code]; !taken {
			break
		}
	}

	s := &roomState{
		snapshot: room.Room{
			Code:      code,
			Ref:       ref,
			HostID:    host.ID,
			CreatedAt: now,
			UpdatedAt: now,
		},
		participants: []room.Participant{host},
	}
	r.rooms[code] = s

	return s.copy(), nil
}

// JoinRoom adds connID as a guest. A connection already in the room keeps
// its position and role and only has its username refreshed.
func (r *Registry) JoinRoom(ctx context.Context, params *room.JoinRoomParams) (room.Room, error) {
	r.logger.DebugContext(ctx, "called", "params", params)

	var result room.Room
	err := r.withRoom(params.Code, func(s *roomState) error {
		if i := s.indexOf(params.ConnID); i >= 0 {
			s.participants[i].Username = params.Username
		} else {
			s.participants = append(s.participants, room.Participant{
				ID:       params.ConnID,
				Username: params.Username,
			})
		}
		s.snapshot.UpdatedAt = r.clock.Now()

		result = s.copy()
		return nil
	})

	return result, err
}

// LeaveRoom removes connID. The last one out deletes the room; a departing
// host hands over to the earliest joined participant left.
func (r *Registry) LeaveRoom(ctx context.Context, code, connID string) (room.LeaveResult, error) {
	r.logger.DebugContext(ctx, "called", "code", code, "conn_id", connID)

	var result room.LeaveResult
	err := r.withRoom(code, func(s *roomState) error {
		i := s.indexOf(connID)
		if i < 0 {
			return room.ErrParticipantNotFound
		}

		result.Left = s.participants[i]
		s.participants = slices.Delete(s.participants, i, i+1)

		if len(s.participants) == 0 {
			s.deleted = true
			r.mu.Lock()
			delete(r.rooms, s.snapshot.Code)
			r.mu.Unlock()
			return nil
		}

		if result.Left.IsHost {
			s.participants[0].IsHost = true
			s.snapshot.HostID = s.participants[0].ID
			result.NewHostID = s.participants[0].ID
		}
		s.snapshot.UpdatedAt = r.clock.Now()

		snapshot := s.copy()
		result.Room = &snapshot
		return nil
	})

	return result, err
}

// UpdateTime overwrites the last known position. Callers check host rights.
func (r *Registry) UpdateTime(ctx context.Context, code string, currentTime float64) error {
	return r.withRoom(code, func(s *roomState) error {
		s.snapshot.CurrentTime = currentTime
		s.snapshot.UpdatedAt = r.clock.Now()
		return nil
	})
}

// UpdatePlayState overwrites the play flag. Callers check host rights.
func (r *Registry) UpdatePlayState(ctx context.Context, code string, playing bool) error {
	return r.withRoom(code, func(s *roomState) error {
		s.snapshot.IsPlaying = playing
		s.snapshot.UpdatedAt = r.clock.Now()
		return nil
	})
}

// UpdateTimeAsHost is UpdateTime guarded by a host check taken under the same
// lock, so a migration cannot slip in between.
func (r *Registry) UpdateTimeAsHost(ctx context.Context, code, connID string, currentTime float64) (room.Room, error) {
	var result room.Room
	err := r.withRoom(code, func(s *roomState) error {
		if s.snapshot.HostID != connID {
			return room.ErrNotHost
		}
		s.snapshot.CurrentTime = currentTime
		s.snapshot.UpdatedAt = r.clock.Now()
		result = s.copy()
		return nil
	})

	return result, err
}

func (r *Registry) UpdatePlayStateAsHost(ctx context.Context, code, connID string, playing bool) (room.Room, error) {
	var result room.Room
	err := r.withRoom(code, func(s *roomState) error {
		if s.snapshot.HostID != connID {
			return room.ErrNotHost
		}
		s.snapshot.IsPlaying = playing
		s.snapshot.UpdatedAt = r.clock.Now()
		result = s.copy()
		return nil
	})

	return result, err
}

func (r *Registry) IsHost(ctx context.Context, code, connID string) bool {
	var isHost bool
	r.withRoom(code, func(s *roomState) error {
		isHost = s.snapshot.HostID == connID
		return nil
	})

	return isHost
}

func (r *Registry) ListParticipants(ctx context.Context, code string) ([]room.Participant, error) {
	var participants []room.Participant
	err := r.withRoom(code, func(s *roomState) error {
		participants = slices.Clone(s.participants)
		return nil
	})

	return participants, err
}

func (r *Registry) GetRoom(ctx context.Context, code string) (room.Room, error) {
	var result room.Room
	err := r.withRoom(code, func(s *roomState) error {
		result = s.copy()
		return nil
	})

	return result, err
}

// Rooms returns a copy of every live room.
func (r *Registry) Rooms() []room.Room {
	r.mu.RLock()
	states := make([]*roomState, 0, len(r.rooms))
	for _, s := range r.rooms {
		states = append(states, s)
	}
	r.mu.RUnlock()

	rooms := make([]room.Room, 0, len(states))
	for _, s := range states {
		s.mu.Lock()
		if !s.deleted {
			rooms = append(rooms, s.copy())
		}
		s.mu.Unlock()
	}

	return rooms
}

// Stats counts live rooms and the participants in them.
func (r *Registry) Stats() (rooms, participants int) {
	r.mu.RLock()
	states := make([]*roomState, 0, len(r.rooms))
	for _, s := range r.rooms {
		states = append(states, s)
	}
	r.mu.RUnlock()

	for _, s := range states {
		s.mu.Lock()
		if !s.deleted {
			rooms++
			participants += len(s.participants)
		}
		s.mu.Unlock()
	}

	return rooms, participants
}
