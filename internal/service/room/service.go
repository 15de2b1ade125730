package room

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sharetube/watchparty/internal/repository/room"
	"github.com/sharetube/watchparty/pkg/wsconn"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrRoomNotFound     = errors.New("room not found")
	ErrInvalidReference = errors.New("invalid video url")
	ErrNotInRoom        = errors.New("connection is not in a room")
)

type iRoomRepo interface {
	CreateRoom(context.Context, *room.CreateRoomParams) (room.Room, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (room.Room, error)
	LeaveRoom(ctx context.Context, code, connID string) (room.LeaveResult, error)
	UpdateTimeAsHost(ctx context.Context, code, connID string, currentTime float64) (room.Room, error)
	UpdatePlayStateAsHost(ctx context.Context, code, connID string, playing bool) (room.Room, error)
	GetRoom(ctx context.Context, code string) (room.Room, error)
	Rooms() []room.Room
	Stats() (rooms, participants int)
}

type iConnRepo interface {
	Add(context.Context, *wsconn.Conn) error
	Remove(ctx context.Context, connID string) error
	Get(ctx context.Context, connID string) (*wsconn.Conn, error)
	GetMany(ctx context.Context, connIDs []string) []*wsconn.Conn
	SetRoomCode(ctx context.Context, connID, roomCode string) error
	GetRoomCode(ctx context.Context, connID string) (string, error)
	Count() int
}

type iDirectory interface {
	Publish(context.Context, room.Summary) error
	Remove(ctx context.Context, code string) error
	Lookup(ctx context.Context, code string) (room.Summary, error)
	List(ctx context.Context, limit int) ([]room.Summary, error)
}

type Config struct {
	// InstanceID tags directory entries so other instances know where a room lives.
	InstanceID string
}

type service struct {
	roomRepo   iRoomRepo
	connRepo   iConnRepo
	directory  iDirectory
	instanceID string
	logger     *slog.Logger
}

func NewService(roomRepo iRoomRepo, connRepo iConnRepo, directory iDirectory, cfg *Config, logger *slog.Logger) *service {
	return &service{
		roomRepo:   roomRepo,
		connRepo:   connRepo,
		directory:  directory,
		instanceID: cfg.InstanceID,
		logger:     logger,
	}
}
