// Package drift keeps a guest's player aligned with the host's reported
// position, by nudging the playback rate for small gaps and seeking for
// large ones.
package drift

import (
	"log/slog"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sharetube/watchparty/internal/playback"
	"golang.org/x/exp/constraints"
)

const (
	SyncInterval       = 500 * time.Millisecond
	TimeUpdateInterval = 100 * time.Millisecond
	SettleWindow       = 500 * time.Millisecond

	SyncThreshold = 0.3
	SeekThreshold = 5.0
	SpeedFactor   = 0.15
	MinSpeed      = 0.75
	MaxSpeed      = 1.5
)

// Player is the part of the playback adapter the corrector drives.
type Player interface {
	CurrentTime() float64
	SeekTo(seconds float64)
	SetPlaybackRate(rate float64) bool
	PlaybackRate() float64
	Capabilities() playback.Capabilities
}

type Action int

const (
	ActionNone Action = iota
	ActionSeek
	ActionAdjustRate
	ActionResetRate
	// ActionSettling means the report landed inside the settle window after a
	// seek and was only recorded.
	ActionSettling
	// ActionStale means the report carried an already applied sequence
	// number.
	ActionStale
)

func (a Action) String() string {
	switch a {
	case ActionSeek:
		return "seek"
	case ActionAdjustRate:
		return "adjust-rate"
	case ActionResetRate:
		return "reset-rate"
	case ActionSettling:
		return "settling"
	case ActionStale:
		return "stale"
	default:
		return "none"
	}
}

// State is the last evaluated sync snapshot.
type State struct {
	HostTime     float64
	LocalTime    float64
	Diff         float64
	PlaybackRate float64
	IsSynced     bool
}

// Corrector is owned by a single goroutine and is not safe for concurrent
// use.
type Corrector struct {
	player      Player
	clock       clockwork.Clock
	logger      *slog.Logger
	state       State
	settleUntil time.Time
	lastSeq     uint64
}

func New(player Player, clock clockwork.Clock, logger *slog.Logger) *Corrector {
	return &Corrector{
		player: player,
		clock:  clock,
		logger: logger,
		state:  State{PlaybackRate: 1, IsSynced: true},
	}
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// TargetRate is the playback rate that closes diff seconds of drift.
func TargetRate(diff float64) float64 {
	return clamp(1+diff*SpeedFactor, MinSpeed, MaxSpeed)
}

// Report evaluates one host position report. A seq of 0 is always applied.
func (c *Corrector) Report(hostTime float64, seq uint64) Action {
	if seq > 0 {
		if seq <= c.lastSeq {
			return ActionStale
		}
		c.lastSeq = seq
	}

	localTime := c.player.CurrentTime()
	diff := hostTime - localTime

	c.state.HostTime = hostTime
	c.state.LocalTime = localTime
	c.state.Diff = diff

	if c.clock.Now().Before(c.settleUntil) {
		return ActionSettling
	}

	switch {
	case math.Abs(diff) > SeekThreshold:
		c.player.SeekTo(hostTime)
		c.player.SetPlaybackRate(1)
		c.state.PlaybackRate = 1
		c.state.IsSynced = false
		c.settleUntil = c.clock.Now().Add(SettleWindow)
		c.logger.Debug("drift corrected by seek", "diff", diff, "host_time", hostTime)
		return ActionSeek

	case math.Abs(diff) > SyncThreshold:
		c.state.IsSynced = false
		if !c.player.Capabilities().SupportsVariableRate {
			return ActionNone
		}
		rate := TargetRate(diff)
		if c.player.SetPlaybackRate(rate) {
			c.state.PlaybackRate = rate
		}
		return ActionAdjustRate

	default:
		c.state.IsSynced = true
		if c.player.PlaybackRate() != 1 {
			c.player.SetPlaybackRate(1)
			c.state.PlaybackRate = 1
			return ActionResetRate
		}
		return ActionNone
	}
}

// Observe refreshes the local side of the snapshot between reports.
func (c *Corrector) Observe() State {
	c.state.LocalTime = c.player.CurrentTime()
	c.state.PlaybackRate = c.player.PlaybackRate()

	return c.state
}

func (c *Corrector) State() State {
	return c.state
}

func (c *Corrector) LastSeq() uint64 {
	return c.lastSeq
}

// Reset forgets sequence numbers, the settle window and the last snapshot.
func (c *Corrector) Reset() {
	c.lastSeq = 0
	c.settleUntil = time.Time{}
	c.state = State{PlaybackRate: 1, IsSynced: true}
}
