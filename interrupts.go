package utask

import (
	"runtime"
	"sync"
	"sync/atomic"
)

type (
	// Interrupts models the platform's interrupt mask, which is the only
	// mechanism used to exclude interrupt context from critical sections.
	//
	// Disable masks interrupts, returning the previous mask state, which
	// must be passed to the paired Restore. Calls may nest, provided each
	// Restore receives the token from its own Disable, in reverse order.
	Interrupts interface {
		Disable() uintptr
		Restore(prev uintptr)
	}

	// HostInterrupts implements Interrupts for hosted environments, where
	// "interrupt context" is any other goroutine. It is a mutex that is
	// reentrant for the goroutine that holds it, which allows nested
	// critical sections, e.g. a handler that calls Core.Alloc.
	//
	// The zero value is ready to use. It must not be copied after first use.
	HostInterrupts struct {
		mu    sync.Mutex
		owner atomic.Uint64
	}
)

const (
	interruptsEnabled uintptr = iota
	interruptsDisabled
)

var _ Interrupts = (*HostInterrupts)(nil)

// Disable acquires the critical section, unless the calling goroutine
// already holds it.
func (x *HostInterrupts) Disable() uintptr {
	id := getGoroutineID()
	if x.owner.Load() == id {
		return interruptsDisabled
	}
	x.mu.Lock()
	x.owner.Store(id)
	return interruptsEnabled
}

// Restore releases the critical section, if prev indicates that it was not
// already held by the caller.
func (x *HostInterrupts) Restore(prev uintptr) {
	if prev != interruptsEnabled {
		return
	}
	x.owner.Store(0)
	x.mu.Unlock()
}

// getGoroutineID returns the current goroutine's ID.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
