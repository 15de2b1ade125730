package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sharetube/watchparty/pkg/videoref"
)

var (
	ErrUnsupported = errors.New("operation not supported by backend")
	ErrClosed      = errors.New("backend closed")
)

// SimulatedBackend is a clock driven player. It stands in for a real
// embedded player in the headless client and in tests.
type SimulatedBackend struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	caps      Capabilities
	position  float64
	rate      float64
	playing   bool
	updatedAt time.Time
	closed    bool
}

func NewSimulatedBackend(clock clockwork.Clock, caps Capabilities) *SimulatedBackend {
	return &SimulatedBackend{
		clock:     clock,
		caps:      caps,
		rate:      1,
		updatedAt: clock.Now(),
	}
}

// advance folds the time played since the last state change into position.
func (b *SimulatedBackend) advance() {
	now := b.clock.Now()
	if b.playing {
		b.position += now.Sub(b.updatedAt).Seconds() * b.rate
	}
	b.updatedAt = now
}

func (b *SimulatedBackend) Play() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.advance()
	b.playing = true

	return nil
}

func (b *SimulatedBackend) Pause() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.advance()
	b.playing = false

	return nil
}

func (b *SimulatedBackend) SeekTo(seconds float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if !b.caps.SupportsSeek {
		return ErrUnsupported
	}
	b.advance()
	b.position = seconds

	return nil
}

func (b *SimulatedBackend) SetPlaybackRate(rate float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if !b.caps.SupportsVariableRate {
		return ErrUnsupported
	}
	b.advance()
	b.rate = rate

	return nil
}

func (b *SimulatedBackend) CurrentTime() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance()

	return b.position
}

func (b *SimulatedBackend) Playing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.playing
}

func (b *SimulatedBackend) Rate() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.rate
}

func (b *SimulatedBackend) Capabilities() Capabilities {
	return b.caps
}

func (b *SimulatedBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true

	return nil
}

func (b *SimulatedBackend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.closed
}

// SimulatedFactory builds SimulatedBackends after InitDelay on Clock. Fail,
// when set, decides per reference whether initialization errors.
type SimulatedFactory struct {
	Clock     clockwork.Clock
	InitDelay time.Duration
	Fail      func(ref videoref.Ref) error

	mu       sync.Mutex
	backends []*SimulatedBackend
}

func (f *SimulatedFactory) New(ctx context.Context, ref videoref.Ref, profile Profile) (Backend, error) {
	if f.InitDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-f.Clock.After(f.InitDelay):
		}
	}

	if f.Fail != nil {
		if err := f.Fail(ref); err != nil {
			return nil, err
		}
	}

	backend := NewSimulatedBackend(f.Clock, profile.Capabilities())

	f.mu.Lock()
	f.backends = append(f.backends, backend)
	f.mu.Unlock()

	return backend, nil
}

// Backends returns every backend built so far, oldest first.
func (f *SimulatedFactory) Backends() []*SimulatedBackend {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]*SimulatedBackend(nil), f.backends...)
}
