// Package client is a headless watch party participant. It keeps one
// websocket session to the server, drives a playback adapter from room
// events and, as a guest, corrects drift against the host's reports.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/sharetube/watchparty/internal/drift"
	"github.com/sharetube/watchparty/internal/playback"
	"github.com/sharetube/watchparty/internal/protocol"
)

const (
	DefaultReconnectDelay = 2 * time.Second
	writeTimeout          = 5 * time.Second
	inboundBuffer         = 32
)

type Config struct {
	// ServerURL is the websocket endpoint, e.g. ws://localhost:80/api/v1/ws.
	ServerURL string
	Username  string
	// VideoURL creates a room on the first connection. RoomCode joins one.
	// When both are empty the client only rejoins a stored room.
	VideoURL       string
	RoomCode       string
	ReconnectDelay time.Duration
}

type Client struct {
	cfg       Config
	dialer    *websocket.Dialer
	store     *Store
	adapter   *playback.Adapter
	corrector *drift.Corrector
	clock     clockwork.Clock
	logger    *slog.Logger
	commands  chan command

	// actionDone is set once a room was entered, so reconnects only rejoin.
	actionDone bool

	mu     sync.Mutex
	status Status
}

// New builds a client. store may be nil to disable rejoin.
func New(cfg Config, factory playback.Factory, store *Store, clock clockwork.Clock, logger *slog.Logger) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}

	adapter := playback.NewAdapter(factory, clock, logger)

	return &Client{
		cfg:       cfg,
		dialer:    websocket.DefaultDialer,
		store:     store,
		adapter:   adapter,
		corrector: drift.New(adapter, clock, logger),
		clock:     clock,
		logger:    logger,
		commands:  make(chan command, 16),
		status:    Status{PlaybackRate: 1},
	}
}

// Run keeps a session open until ctx is cancelled, reconnecting after
// ReconnectDelay whenever the connection drops.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.runConn(ctx)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.WarnContext(ctx, "connection lost", "error", err, "retry_in", c.cfg.ReconnectDelay)

		select {
		case <-ctx.Done():
			return nil
		case <-c.clock.After(c.cfg.ReconnectDelay):
		}
	}
}

func (c *Client) runConn(ctx context.Context) error {
	ws, _, err := c.dialer.DialContext(ctx, c.cfg.ServerURL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}
	defer ws.Close()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	inbound := make(chan protocol.Input, inboundBuffer)
	readErr := make(chan error, 1)
	go func() {
		for {
			var in protocol.Input
			if err := ws.ReadJSON(&in); err != nil {
				readErr <- err
				return
			}
			select {
			case inbound <- in:
			case <-connCtx.Done():
				return
			}
		}
	}()

	s := &session{
		client:  c,
		ws:      ws,
		inbound: inbound,
		logger:  c.logger,
	}
	c.updateStatus(func(st *Status) { st.Connected = true })
	defer func() {
		s.teardown()
		c.updateStatus(func(st *Status) { st.Connected = false })
	}()

	if err := s.start(connCtx); err != nil {
		return err
	}

	return s.loop(connCtx, readErr)
}
