package controller

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/pkg/ctxlogger"
	"github.com/sharetube/watchparty/pkg/wsconn"
)

func (c controller) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade connection", "error", err)
		return
	}

	connID := uuid.NewString()
	ctx := ctxlogger.AppendCtx(r.Context(), slog.String("conn_id", connID))
	conn := wsconn.New(connID, ws, c.connConfig)

	if err := c.roomService.Connect(ctx, conn); err != nil {
		c.logger.ErrorContext(ctx, "failed to register connection", "error", err)
		conn.Close()
		return
	}
	c.logger.InfoContext(ctx, "connection opened", "remote_addr", r.RemoteAddr)

	go func() {
		if err := conn.WritePump(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.DebugContext(ctx, "write pump stopped", "error", err)
		}
	}()

	if err := c.wsmux.ServeConn(ctx, conn); err != nil &&
		!websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		c.logger.DebugContext(ctx, "read loop stopped", "error", err)
	}

	conn.Close()

	// the request context may already be cancelled on shutdown
	cleanupCtx := context.WithoutCancel(ctx)
	left, err := c.roomService.Disconnect(cleanupCtx, connID)
	if err != nil {
		c.logger.ErrorContext(cleanupCtx, "failed to disconnect", "error", err)
		return
	}
	c.notifyLeft(cleanupCtx, left)
	c.logger.InfoContext(cleanupCtx, "connection closed")
}
