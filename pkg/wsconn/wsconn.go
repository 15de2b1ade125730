package wsconn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrClosed         = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

type Config struct {
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

func DefaultConfig() Config {
	return Config{
		WriteTimeout:   10 * time.Second,
		PongTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     64,
	}
}

// Conn is a websocket connection whose writes all go through a single pump
// goroutine fed by a bounded queue.
type Conn struct {
	id        string
	ws        *websocket.Conn
	cfg       Config
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func New(id string, ws *websocket.Conn, cfg Config) *Conn {
	if cfg.SendBuffer < 1 {
		cfg.SendBuffer = 1
	}

	c := &Conn{
		id:   id,
		ws:   ws,
		cfg:  cfg,
		send: make(chan []byte, cfg.SendBuffer),
		done: make(chan struct{}),
	}

	if ws != nil {
		if cfg.MaxMessageSize > 0 {
			ws.SetReadLimit(cfg.MaxMessageSize)
		}
		if cfg.PongTimeout > 0 {
			ws.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
			ws.SetPongHandler(func(string) error {
				return ws.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
			})
		}
	}

	return c
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Send queues msg without blocking.
func (c *Conn) Send(msg []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrSendBufferFull
	}
}

func (c *Conn) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return c.Send(data)
}

// ReadJSON reads the next message. Every message received pushes the read
// deadline forward like a pong does.
func (c *Conn) ReadJSON(v any) error {
	if c.ws == nil {
		return ErrClosed
	}

	if err := c.ws.ReadJSON(v); err != nil {
		return err
	}

	if c.cfg.PongTimeout > 0 {
		c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	}

	return nil
}

// WritePump drains the send queue and keeps the connection alive with pings.
// It returns when ctx is cancelled, the conn is closed or a write fails.
func (c *Conn) WritePump(ctx context.Context) error {
	if c.ws == nil {
		return ErrClosed
	}

	pingInterval := c.cfg.PingInterval
	if pingInterval <= 0 {
		pingInterval = DefaultConfig().PingInterval
	}
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.Close()

	for {
		select {
		case <-ctx.Done():
			c.writeClose()
			return ctx.Err()
		case <-c.done:
			return nil
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return fmt.Errorf("failed to write message: %w", err)
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("failed to write ping: %w", err)
			}
		}
	}
}

func (c *Conn) writeClose() {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			err = c.ws.Close()
		}
	})

	return err
}
