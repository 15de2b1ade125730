package client

import (
	"context"

	"github.com/sharetube/watchparty/internal/drift"
	"github.com/sharetube/watchparty/internal/playback"
	"github.com/sharetube/watchparty/internal/protocol"
)

// Status is a snapshot of the client, refreshed by the event loop.
type Status struct {
	Connected    bool
	RoomCode     string
	Platform     string
	VideoID      string
	Username     string
	IsHost       bool
	IsPlaying    bool
	Participants []protocol.Participant
	Backend      playback.Status
	LocalTime    float64
	PlaybackRate float64
	Sync         drift.State
	LastError    string
}

func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.status
	st.Participants = append([]protocol.Participant(nil), c.status.Participants...)

	return st
}

func (c *Client) updateStatus(fn func(st *Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fn(&c.status)
}

type commandKind int

const (
	cmdPlay commandKind = iota
	cmdPause
	cmdSeek
	cmdLeave
)

type command struct {
	kind    commandKind
	seconds float64
}

func (c *Client) send(ctx context.Context, cmd command) error {
	select {
	case c.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Play starts playback for the room. Only the host's commands reach the
// other participants.
func (c *Client) Play(ctx context.Context) error {
	return c.send(ctx, command{kind: cmdPlay})
}

func (c *Client) Pause(ctx context.Context) error {
	return c.send(ctx, command{kind: cmdPause})
}

// Seek moves the host's player. Guests follow with the next sync report.
func (c *Client) Seek(ctx context.Context, seconds float64) error {
	return c.send(ctx, command{kind: cmdSeek, seconds: seconds})
}

func (c *Client) Leave(ctx context.Context) error {
	return c.send(ctx, command{kind: cmdLeave})
}
