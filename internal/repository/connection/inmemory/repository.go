package inmemory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sharetube/watchparty/internal/repository/connection"
	"github.com/sharetube/watchparty/pkg/wsconn"
)

type entry struct {
	conn     *wsconn.Conn
	roomCode string
}

// repo tracks open connections and the room each one is currently in.
type repo struct {
	list   map[string]*entry
	mu     sync.RWMutex
	logger *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		list:   make(map[string]*entry),
		logger: logger,
	}
}

func (r *repo) Add(ctx context.Context, conn *wsconn.Conn) error {
	funcName := "connection.inmemory.Add"
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.DebugContext(ctx, funcName, "conn_id", conn.ID())
	if _, ok := r.list[conn.ID()]; ok {
		r.logger.InfoContext(ctx, funcName, "error", connection.ErrAlreadyExists)
		return connection.ErrAlreadyExists
	}

	r.list[conn.ID()] = &entry{conn: conn}

	return nil
}

func (r *repo) Remove(ctx context.Context, connID string) error {
	funcName := "connection.inmemory.Remove"
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.DebugContext(ctx, funcName, "conn_id", connID)
	if _, ok := r.list[connID]; !ok {
		r.logger.InfoContext(ctx, funcName, "error", connection.ErrNotFound)
		return connection.ErrNotFound
	}

	delete(r.list, connID)

	return nil
}

func (r *repo) Get(ctx context.Context, connID string) (*wsconn.Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.list[connID]
	if !ok {
		return nil, connection.ErrNotFound
	}

	return e.conn, nil
}

// GetMany resolves ids in order, skipping connections that are already gone.
func (r *repo) GetMany(ctx context.Context, connIDs []string) []*wsconn.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*wsconn.Conn, 0, len(connIDs))
	for _, id := range connIDs {
		if e, ok := r.list[id]; ok {
			conns = append(conns, e.conn)
		}
	}

	return conns
}

func (r *repo) SetRoomCode(ctx context.Context, connID, roomCode string) error {
	funcName := "connection.inmemory.SetRoomCode"
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.DebugContext(ctx, funcName, "conn_id", connID, "room_code", roomCode)
	e, ok := r.list[connID]
	if !ok {
		return connection.ErrNotFound
	}
	e.roomCode = roomCode

	return nil
}

// GetRoomCode returns "" when the connection is not in a room.
func (r *repo) GetRoomCode(ctx context.Context, connID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.list[connID]
	if !ok {
		return "", connection.ErrNotFound
	}

	return e.roomCode, nil
}

func (r *repo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.list)
}
