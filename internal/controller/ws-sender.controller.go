package controller

import (
	"context"
	"encoding/json"
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sharetube/watchparty/internal/protocol"
	"github.com/sharetube/watchparty/internal/service/room"
	"github.com/sharetube/watchparty/pkg/validator"
	"github.com/sharetube/watchparty/pkg/wsconn"
	"github.com/sharetube/watchparty/pkg/wsrouter"
)

func (c controller) writeToConn(ctx context.Context, conn *wsconn.Conn, output *protocol.Output) {
	data, err := json.Marshal(output)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to marshal output", "type", output.Type, "error", err)
		return
	}

	c.send(ctx, conn, output.Type, data)
}

// broadcast marshals output once and queues it on every conn. A slow or
// closed conn never blocks the others.
func (c controller) broadcast(ctx context.Context, conns []*wsconn.Conn, output *protocol.Output) {
	if len(conns) == 0 {
		return
	}

	data, err := json.Marshal(output)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to marshal output", "type", output.Type, "error", err)
		return
	}

	for _, conn := range conns {
		c.send(ctx, conn, output.Type, data)
	}
}

func (c controller) send(ctx context.Context, conn *wsconn.Conn, messageType string, data []byte) {
	if err := conn.Send(data); err != nil {
		c.metrics.IncDroppedSends()
		c.logger.WarnContext(ctx, "failed to send message",
			"type", messageType,
			"to", conn.ID(),
			"error", err,
		)
	}
}

func (c controller) writeError(ctx context.Context, conn *wsconn.Conn, message string) {
	c.writeToConn(ctx, conn, &protocol.Output{
		Type:    protocol.EventError,
		Payload: protocol.ErrorPayload{Message: message},
	})
}

func (c controller) handleWSError(ctx context.Context, conn *wsconn.Conn, err error) {
	messageType := wsrouter.GetMessageTypeFromCtx(ctx)

	var (
		validationErrors validator.ValidationErrors
		ruleErrors       validation.Errors
	)

	switch {
	case errors.Is(err, room.ErrPermissionDenied):
		c.metrics.IncDroppedHostActions(messageType)
		c.logger.DebugContext(ctx, "host action dropped", "type", messageType, "error", err)
	case errors.Is(err, room.ErrNotInRoom):
		c.logger.DebugContext(ctx, "leave without room ignored", "error", err)
	case errors.Is(err, room.ErrInvalidReference):
		c.writeError(ctx, conn, "invalid video url")
	case errors.Is(err, room.ErrRoomNotFound):
		c.writeError(ctx, conn, "room not found")
	case errors.As(err, &validationErrors):
		c.writeError(ctx, conn, validationErrors.Error())
	case errors.As(err, &ruleErrors):
		c.writeError(ctx, conn, ruleErrors.Error())
	case errors.Is(err, wsrouter.ErrUnknownMessageType):
		c.writeError(ctx, conn, "unknown message type")
	case errors.Is(err, wsrouter.ErrInvalidPayload):
		c.writeError(ctx, conn, "invalid payload")
	default:
		c.metrics.IncErrors()
		c.logger.WarnContext(ctx, "failed to handle message", "type", messageType, "error", err)
		c.writeError(ctx, conn, "internal error")
	}
}
