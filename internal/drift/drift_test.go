package drift

import (
	"io"
	"log/slog"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/sharetube/watchparty/internal/playback"
	"github.com/stretchr/testify/assert"
)

type fakePlayer struct {
	caps      playback.Capabilities
	time      float64
	rate      float64
	seeks     []float64
	rateCalls []float64
}

func newFakePlayer(localTime float64) *fakePlayer {
	return &fakePlayer{
		caps: playback.ProfileOnDemand.Capabilities(),
		time: localTime,
		rate: 1,
	}
}

func (p *fakePlayer) CurrentTime() float64 { return p.time }

func (p *fakePlayer) SeekTo(seconds float64) {
	p.seeks = append(p.seeks, seconds)
	p.time = seconds
}

func (p *fakePlayer) SetPlaybackRate(rate float64) bool {
	if !p.caps.SupportsVariableRate {
		return false
	}
	p.rateCalls = append(p.rateCalls, rate)
	p.rate = rate
	return true
}

func (p *fakePlayer) PlaybackRate() float64 { return p.rate }

func (p *fakePlayer) Capabilities() playback.Capabilities { return p.caps }

func newCorrector(p Player) (*Corrector, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	return New(p, clock, slog.New(slog.NewTextHandler(io.Discard, nil))), clock
}

func TestReport_HardSeek(t *testing.T) {
	p := newFakePlayer(94.5)
	p.rate = 1.2
	c, _ := newCorrector(p)

	action := c.Report(100, 0)

	assert.Equal(t, ActionSeek, action)
	assert.Equal(t, []float64{100}, p.seeks)
	assert.Equal(t, 1.0, p.rate)
	assert.False(t, c.State().IsSynced)
	assert.InDelta(t, 5.5, c.State().Diff, 1e-9)
}

func TestReport_SoftCorrection(t *testing.T) {
	p := newFakePlayer(100.0)
	c, _ := newCorrector(p)

	action := c.Report(100.4, 0)

	assert.Equal(t, ActionAdjustRate, action)
	assert.InDelta(t, 1.06, p.rate, 1e-9)
	assert.False(t, c.State().IsSynced)
	assert.Empty(t, p.seeks)
}

func TestReport_SoftCorrectionSlowsDownWhenAhead(t *testing.T) {
	p := newFakePlayer(103.0)
	c, _ := newCorrector(p)

	c.Report(100, 0)

	assert.InDelta(t, 0.75, p.rate, 1e-9)
}

func TestReport_SoftCorrectionWithoutRateSupport(t *testing.T) {
	p := newFakePlayer(100.0)
	p.caps = playback.ProfileRecordedSegment.Capabilities()
	c, _ := newCorrector(p)

	action := c.Report(101, 0)

	assert.Equal(t, ActionNone, action)
	assert.Empty(t, p.rateCalls)
	assert.Empty(t, p.seeks)
	assert.False(t, c.State().IsSynced)
}

func TestReport_Converged(t *testing.T) {
	p := newFakePlayer(100.0)
	p.rate = 1.06
	c, _ := newCorrector(p)

	action := c.Report(100.05, 0)

	assert.Equal(t, ActionResetRate, action)
	assert.Equal(t, 1.0, p.rate)
	assert.True(t, c.State().IsSynced)

	assert.Equal(t, ActionNone, c.Report(100.05, 0))
	assert.Len(t, p.rateCalls, 1)
}

func TestReport_SettleWindow(t *testing.T) {
	p := newFakePlayer(0)
	c, clock := newCorrector(p)

	assert.Equal(t, ActionSeek, c.Report(60, 0))

	// a second large gap right after the jump is only recorded
	p.time = 50
	assert.Equal(t, ActionSettling, c.Report(60, 0))
	assert.Len(t, p.seeks, 1)
	assert.InDelta(t, 10.0, c.State().Diff, 1e-9)

	clock.Advance(SettleWindow)
	assert.Equal(t, ActionSeek, c.Report(60, 0))
	assert.Len(t, p.seeks, 2)
}

func TestReport_Sequence(t *testing.T) {
	p := newFakePlayer(100)
	c, _ := newCorrector(p)

	assert.Equal(t, ActionNone, c.Report(100, 5))
	assert.Equal(t, ActionStale, c.Report(200, 5))
	assert.Equal(t, ActionStale, c.Report(200, 3))
	assert.Empty(t, p.seeks)

	// unnumbered reports are always applied
	assert.Equal(t, ActionNone, c.Report(100.1, 0))
	assert.Equal(t, uint64(5), c.LastSeq())

	c.Reset()
	assert.Equal(t, ActionSeek, c.Report(200, 1))
}

func TestTargetRate(t *testing.T) {
	assert.InDelta(t, 1.06, TargetRate(0.4), 1e-9)
	assert.Equal(t, MaxSpeed, TargetRate(10))
	assert.Equal(t, MinSpeed, TargetRate(-10))
	assert.Equal(t, 1.0, TargetRate(0))
}

func TestObserve(t *testing.T) {
	p := newFakePlayer(42)
	c, _ := newCorrector(p)

	p.time = 43.5
	state := c.Observe()

	assert.Equal(t, 43.5, state.LocalTime)
	assert.Equal(t, 1.0, state.PlaybackRate)
}
