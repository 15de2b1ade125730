package playback

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/sharetube/watchparty/pkg/videoref"
)

// Backend is a concrete player. Calls are fire and forget from the
// adapter's point of view: errors are logged, never retried.
type Backend interface {
	Play() error
	Pause() error
	SeekTo(seconds float64) error
	SetPlaybackRate(rate float64) error
	CurrentTime() float64
}

// CapabilityReporter is implemented by backends that know better than the
// profile what they support.
type CapabilityReporter interface {
	Capabilities() Capabilities
}

// Factory initializes a backend. It may block and should return early when
// ctx is cancelled.
type Factory func(ctx context.Context, ref videoref.Ref, profile Profile) (Backend, error)

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}

type BackendInitFailure struct {
	Ref videoref.Ref
	Err error
}

func (e *BackendInitFailure) Error() string {
	return fmt.Sprintf("failed to initialize %s backend for %s: %v", e.Ref.Platform, e.Ref.VideoID, e.Err)
}

func (e *BackendInitFailure) Unwrap() error {
	return e.Err
}

// Adapter exposes one playback surface over whichever backend the loaded
// reference needs. Control calls on an adapter that is not ready are no-ops.
type Adapter struct {
	mu      sync.Mutex
	factory Factory
	clock   clockwork.Clock
	logger  *slog.Logger

	// token changes on every Load and Teardown. An initialization that
	// finishes under an older token is discarded.
	token   uint64
	cancel  context.CancelFunc
	done    chan struct{}
	ref     videoref.Ref
	profile Profile
	caps    Capabilities
	status  Status
	err     error
	backend Backend
	manual  *ManualClock
	rate    float64
}

func NewAdapter(factory Factory, clock clockwork.Clock, logger *slog.Logger) *Adapter {
	return &Adapter{
		factory: factory,
		clock:   clock,
		logger:  logger,
		rate:    1,
	}
}

// Load starts initializing a backend for ref and returns a channel closed
// once that initialization settles. Loading the ref that is already loading
// or ready returns the pending channel without restarting.
func (a *Adapter) Load(ctx context.Context, ref videoref.Ref) <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ref == ref && a.done != nil && (a.status == StatusLoading || a.status == StatusReady) {
		return a.done
	}

	a.teardownLocked()

	a.token++
	token := a.token
	initCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	a.cancel = cancel
	a.done = done
	a.ref = ref
	a.profile = ProfileFor(ref)
	a.caps = a.profile.Capabilities()
	a.status = StatusLoading

	go a.initialize(initCtx, token, ref, a.profile, done)

	return done
}

func (a *Adapter) initialize(ctx context.Context, token uint64, ref videoref.Ref, profile Profile, done chan struct{}) {
	defer close(done)

	backend, err := a.factory(ctx, ref, profile)

	a.mu.Lock()
	defer a.mu.Unlock()

	if token != a.token {
		a.logger.Debug("discarding stale backend", "ref", ref.String())
		if err == nil {
			closeBackend(backend)
		}
		return
	}

	if err != nil {
		a.status = StatusFailed
		a.err = &BackendInitFailure{Ref: ref, Err: err}
		a.logger.Error("backend initialization failed", "ref", ref.String(), "error", err)
		return
	}

	a.backend = backend
	if reporter, ok := backend.(CapabilityReporter); ok {
		a.caps = reporter.Capabilities()
	}
	if a.caps.UsesManualClock {
		a.manual = NewManualClock(a.clock)
	}
	a.rate = 1
	a.err = nil
	a.status = StatusReady
	a.logger.Debug("backend ready", "ref", ref.String(), "profile", profile.String())
}

func closeBackend(backend Backend) {
	if closer, ok := backend.(io.Closer); ok {
		closer.Close()
	}
}

// Teardown drops the current backend and invalidates any pending
// initialization. It is safe to call repeatedly.
func (a *Adapter) Teardown() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.teardownLocked()
}

func (a *Adapter) teardownLocked() {
	if a.status == StatusIdle && a.backend == nil {
		return
	}

	a.token++
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.backend != nil {
		closeBackend(a.backend)
		a.backend = nil
	}

	a.done = nil
	a.ref = videoref.Ref{}
	a.profile = ProfileNone
	a.caps = Capabilities{}
	a.manual = nil
	a.rate = 1
	a.err = nil
	a.status = StatusIdle
}

func (a *Adapter) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.status
}

// Err returns the *BackendInitFailure of a failed adapter.
func (a *Adapter) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.err
}

func (a *Adapter) Ref() videoref.Ref {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.ref
}

func (a *Adapter) Profile() Profile {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.profile
}

func (a *Adapter) Capabilities() Capabilities {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.caps
}

func (a *Adapter) Ready() bool {
	return a.Status() == StatusReady
}

func (a *Adapter) logFailure(op string, err error) {
	if err != nil {
		a.logger.Warn("backend call failed", "op", op, "error", err)
	}
}

func (a *Adapter) Play() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.status != StatusReady {
		return
	}

	a.logFailure("play", a.backend.Play())
	if a.manual != nil {
		a.manual.Play()
	}
}

func (a *Adapter) Pause() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.status != StatusReady {
		return
	}

	a.logFailure("pause", a.backend.Pause())
	if a.manual != nil {
		a.manual.Pause()
	}
}

// SeekTo moves the backend when it can seek and the synthesized clock when
// there is one.
func (a *Adapter) SeekTo(seconds float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.status != StatusReady {
		return
	}

	if a.caps.SupportsSeek {
		a.logFailure("seek", a.backend.SeekTo(seconds))
	}
	if a.manual != nil {
		a.manual.Seek(seconds)
	}
}

// SetPlaybackRate reports whether the rate was applied.
func (a *Adapter) SetPlaybackRate(rate float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.status != StatusReady || !a.caps.SupportsVariableRate {
		return false
	}

	if err := a.backend.SetPlaybackRate(rate); err != nil {
		a.logFailure("set rate", err)
		return false
	}
	a.rate = rate

	return true
}

func (a *Adapter) PlaybackRate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.rate
}

func (a *Adapter) CurrentTime() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.status != StatusReady {
		return 0
	}
	if a.manual != nil {
		return a.manual.CurrentTime()
	}

	return a.backend.CurrentTime()
}
