package utask

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// LoopState represents the lifecycle state of a Core.
//
// State machine:
//
//	StateAwake → StateRunning            [Run()]
//	StateAwake → StateTerminated         [Shutdown()]
//	StateRunning → StateTerminating      [Shutdown()]
//	StateTerminating → StateTerminated   [observed by the loop]
//	StateRunning → StateTerminated       [ctx cancellation]
//	StateTerminated → (terminal)
//
// Running and Terminating are only ever entered via CAS. Terminated is
// irreversible, and may be stored.
type LoopState uint64

const (
	// StateAwake indicates the core has been created, but the loop has not
	// been started.
	StateAwake LoopState = iota
	// StateRunning indicates Run is active.
	StateRunning
	// StateTerminating indicates shutdown has been requested, but not yet
	// observed by the loop.
	StateTerminating
	// StateTerminated indicates the loop has stopped. It is terminal.
	StateTerminated
)

// String returns a human-readable representation of the state.
func (s LoopState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state machine, padded to avoid false sharing with
// the tick counter, which is written from interrupt context.
type fastState struct {
	_ cpu.CacheLinePad
	v atomic.Uint64
	_ cpu.CacheLinePad
}

func (s *fastState) Load() LoopState {
	return LoopState(s.v.Load())
}

// Store must only be used for StateTerminated.
func (s *fastState) Store(state LoopState) {
	s.v.Store(uint64(state))
}

func (s *fastState) TryTransition(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// IsTerminal returns true for Terminating or Terminated, i.e. once shutdown
// has been requested.
func (s *fastState) IsTerminal() bool {
	switch s.Load() {
	case StateTerminating, StateTerminated:
		return true
	default:
		return false
	}
}
