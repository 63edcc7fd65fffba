package eventloop

import (
	"sync/atomic"
)

// LoopState represents the current state of the event loop.
//
// State Machine:
//
//	StateAwake → StateRunning              [Run()]
//	StateRunning → StateSleeping           [waiting for work, via CAS]
//	StateSleeping → StateRunning           [woken, via CAS]
//	StateAwake → StateTerminated           [Shutdown() or Close() before Run()]
//	StateRunning → StateTerminating        [Shutdown(), Close(), ctx done]
//	StateSleeping → StateTerminating       [Shutdown(), Close(), ctx done]
//	StateTerminating → StateTerminated     [queued tasks drained]
//	StateTerminated → (terminal)
type LoopState uint64

const (
	// StateAwake indicates the loop has been created but not started.
	StateAwake LoopState = iota
	// StateRunning indicates the loop is actively processing tasks.
	StateRunning
	// StateSleeping indicates the loop is blocked, waiting for tasks or
	// timers.
	StateSleeping
	// StateTerminating indicates shutdown has been requested but not
	// completed. Tasks may still be submitted, and will be drained.
	StateTerminating
	// StateTerminated indicates the loop has been stopped.
	StateTerminated
)

// String returns a human-readable representation of the state.
func (s LoopState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state machine.
type fastState struct {
	v atomic.Uint64
}

func (s *fastState) Load() LoopState {
	return LoopState(s.v.Load())
}

// Store must only be used for irreversible states (Terminated).
func (s *fastState) Store(state LoopState) {
	s.v.Store(uint64(state))
}

func (s *fastState) TryTransition(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// terminate moves any non-terminal state to StateTerminating, returning the
// previous state, or false if already terminating or terminated.
func (s *fastState) terminate() (LoopState, bool) {
	for {
		current := s.Load()
		if current == StateTerminating || current == StateTerminated {
			return current, false
		}
		if s.TryTransition(current, StateTerminating) {
			return current, true
		}
	}
}
