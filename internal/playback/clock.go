package playback

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// ManualClock synthesizes a playback position for backends that cannot
// report one. It is not safe for concurrent use.
type ManualClock struct {
	clock     clockwork.Clock
	base      float64
	startedAt time.Time
	counting  bool
}

func NewManualClock(clock clockwork.Clock) *ManualClock {
	return &ManualClock{clock: clock}
}

func (m *ManualClock) elapsed() float64 {
	if !m.counting {
		return 0
	}

	return m.clock.Since(m.startedAt).Seconds()
}

// Play starts counting. Playing an already running clock is a no-op.
func (m *ManualClock) Play() {
	if m.counting {
		return
	}

	m.startedAt = m.clock.Now()
	m.counting = true
}

func (m *ManualClock) Pause() {
	m.base += m.elapsed()
	m.counting = false
}

func (m *ManualClock) Seek(seconds float64) {
	m.base = seconds
	if m.counting {
		m.startedAt = m.clock.Now()
	}
}

func (m *ManualClock) Reset() {
	m.base = 0
	m.counting = false
}

func (m *ManualClock) CurrentTime() float64 {
	return m.base + m.elapsed()
}

func (m *ManualClock) Running() bool {
	return m.counting
}
