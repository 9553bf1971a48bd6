package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Tick is the sleep resolution; a stop request is noticed within one tick.
const Tick = 250 * time.Millisecond

// Phase is the orchestrator's position in its cycle.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseManifestLoaded
	PhaseCycleStart
	PhaseLockCheck
	PhaseSkip
	PhaseFetch
	PhasePublish
	PhaseSleep
	PhaseShuttingDown
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseManifestLoaded:
		return "manifest-loaded"
	case PhaseCycleStart:
		return "cycle-start"
	case PhaseLockCheck:
		return "lock-check"
	case PhaseSkip:
		return "skip"
	case PhaseFetch:
		return "fetch"
	case PhasePublish:
		return "publish"
	case PhaseSleep:
		return "sleep"
	case PhaseShuttingDown:
		return "shutting-down"
	default:
		return "unknown"
	}
}

// State is the running flag shared between the loop and signal handlers.
type State struct {
	running atomic.Bool
	phase   atomic.Int32
	done    chan struct{}
	once    sync.Once
}

// NewState returns a running state.
func NewState() *State {
	s := &State{done: make(chan struct{})}
	s.running.Store(true)
	return s
}

// Running reports whether no stop was requested.
func (s *State) Running() bool {
	return s.running.Load()
}

// Stop requests a cooperative shutdown. Safe to call from any goroutine, more than once.
func (s *State) Stop() {
	s.once.Do(func() {
		s.running.Store(false)
		close(s.done)
	})
}

// Done is closed once Stop is called.
func (s *State) Done() <-chan struct{} {
	return s.done
}

// Phase returns the current phase.
func (s *State) Phase() Phase {
	return Phase(s.phase.Load())
}

func (s *State) setPhase(p Phase) {
	s.phase.Store(int32(p))
}

// Sleep waits for d in Tick steps. It returns false as soon as a stop is
// requested or ctx ends, true when the full interval elapsed.
func (s *State) Sleep(ctx context.Context, d time.Duration) bool {
	if !s.Running() {
		return false
	}

	deadline := time.NewTimer(d)
	defer deadline.Stop()
	tick := time.NewTicker(Tick)
	defer tick.Stop()

	for {
		select {
		case <-deadline.C:
			return s.Running()
		case <-s.done:
			return false
		case <-ctx.Done():
			return false
		case <-tick.C:
			if !s.Running() {
				return false
			}
		}
	}
}
