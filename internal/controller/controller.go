package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/internal/platform/metrics"
	repoRoom "github.com/sharetube/watchparty/internal/repository/room"
	"github.com/sharetube/watchparty/internal/service/room"
	"github.com/sharetube/watchparty/pkg/validator"
	"github.com/sharetube/watchparty/pkg/wsconn"
	"github.com/sharetube/watchparty/pkg/wsrouter"
)

type iRoomService interface {
	Connect(context.Context, *wsconn.Conn) error
	Disconnect(ctx context.Context, connID string) (*room.LeaveRoomResponse, error)
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	LeaveRoom(context.Context, *room.LeaveRoomParams) (room.LeaveRoomResponse, error)
	SyncTime(context.Context, *room.SyncTimeParams) (room.SyncTimeResponse, error)
	UpdatePlayState(context.Context, *room.UpdatePlayStateParams) (room.UpdatePlayStateResponse, error)
	GetRoomSummary(ctx context.Context, code string) (repoRoom.Summary, error)
	ListRooms(ctx context.Context, limit int) ([]repoRoom.Summary, error)
	Stats() room.Stats
}

type controller struct {
	roomService iRoomService
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	metrics     *metrics.Metrics
	connConfig  wsconn.Config
	wsmux       *wsrouter.WSRouter
	logger      *slog.Logger
}

func NewController(roomService iRoomService, m *metrics.Metrics, connConfig wsconn.Config, logger *slog.Logger) *controller {
	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		validate:    validator.NewValidator(),
		metrics:     m,
		connConfig:  connConfig,
		logger:      logger,
	}
	c.wsmux = c.getWSRouter()

	return c
}
