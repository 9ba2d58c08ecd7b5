package utask

import (
	"errors"
	"fmt"
)

var (
	// ErrExhausted is matched (via errors.Is) by every error caused by a
	// lack of fixed capacity, i.e. ErrNoTCB and ErrISRQueueFull.
	ErrExhausted = errors.New("utask: exhausted")

	// ErrNoTCB is returned by MessageSend when every task control block is
	// in use.
	ErrNoTCB = fmt.Errorf("%w: no free task control block", ErrExhausted)

	// ErrISRQueueFull is returned by MessageSendISR when the interrupt
	// context queue is full.
	ErrISRQueueFull = fmt.Errorf("%w: isr queue full", ErrExhausted)

	// ErrInvalidTask is returned when a nil task, or a task with a nil
	// handler, is provided.
	ErrInvalidTask = errors.New("utask: invalid task")

	// ErrInvalidOption is wrapped by the error returned by New, if any
	// option was invalid.
	ErrInvalidOption = errors.New("utask: invalid option")

	// ErrLoopAlreadyRunning is returned when Run or RunOnce is called while
	// the loop is already being run, from another goroutine.
	ErrLoopAlreadyRunning = errors.New("utask: loop is already running")

	// ErrLoopTerminated is returned when operations are attempted on a
	// terminated (or uninitialized) core.
	ErrLoopTerminated = errors.New("utask: loop has been terminated")

	// ErrReentrantRun is returned when Run or RunOnce is called from within
	// a handler.
	ErrReentrantRun = errors.New("utask: cannot run the loop from within the loop")

	// ErrNotLoopContext is returned when a normal context operation is
	// attempted from a goroutine other than the one running the loop.
	ErrNotLoopContext = errors.New("utask: not called from the loop goroutine")
)
