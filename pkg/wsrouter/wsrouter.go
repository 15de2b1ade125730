package wsrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sharetube/watchparty/pkg/wsconn"
)

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrInvalidPayload     = errors.New("invalid payload")
)

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type HandlerFunc[T any] func(ctx context.Context, conn *wsconn.Conn, payload T) error

// Middleware wraps every handler. Payload is the already decoded input.
type Middleware func(next HandlerFunc[any]) HandlerFunc[any]

// ErrorHandler receives handler, decode and routing errors. The connection
// stays open after it returns.
type ErrorHandler func(ctx context.Context, conn *wsconn.Conn, err error)

type route func(ctx context.Context, conn *wsconn.Conn, raw json.RawMessage) error

type WSRouter struct {
	routes       map[string]route
	middlewares  []Middleware
	errorHandler ErrorHandler
}

func New() *WSRouter {
	return &WSRouter{
		routes:       make(map[string]route),
		errorHandler: func(context.Context, *wsconn.Conn, error) {},
	}
}

// Use appends middlewares. Only routes registered afterwards are wrapped.
func (r *WSRouter) Use(mws ...Middleware) {
	r.middlewares = append(r.middlewares, mws...)
}

func (r *WSRouter) OnError(h ErrorHandler) {
	r.errorHandler = h
}

// Handle registers h for messageType. The payload is decoded into T before
// the middleware chain runs.
func Handle[T any](r *WSRouter, messageType string, h HandlerFunc[T]) {
	var next HandlerFunc[any] = func(ctx context.Context, conn *wsconn.Conn, payload any) error {
		return h(ctx, conn, payload.(T))
	}
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		next = r.middlewares[i](next)
	}

	r.routes[messageType] = func(ctx context.Context, conn *wsconn.Conn, raw json.RawMessage) error {
		var payload T
		if len(bytes.TrimSpace(raw)) > 0 {
			if err := json.Unmarshal(raw, &payload); err != nil {
				return fmt.Errorf("%w: %s", ErrInvalidPayload, err)
			}
		}

		return next(ctx, conn, payload)
	}
}

// ServeConn reads messages until the connection fails and dispatches each
// one in order on the calling goroutine.
func (r *WSRouter) ServeConn(ctx context.Context, conn *wsconn.Conn) error {
	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		msgCtx := context.WithValue(ctx, messageTypeKey, msg.Type)

		handler, exists := r.routes[msg.Type]
		if !exists {
			r.errorHandler(msgCtx, conn, fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type))
			continue
		}

		if err := handler(msgCtx, conn, msg.Payload); err != nil {
			r.errorHandler(msgCtx, conn, err)
		}
	}
}
