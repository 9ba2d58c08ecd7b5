// Package isrq implements the fixed capacity, non-blocking queue used to hand
// messages off from interrupt context to the dispatch loop.
//
// The Ring is safe for exactly one producer and one consumer, concurrently.
// Multiple producers must serialize Push themselves.
package isrq

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

type (
	// Ring is a circular buffer with one slot more than its capacity, the
	// extra slot distinguishing full from empty. Instances must be
	// initialized using the New factory.
	Ring[E any] struct {
		_     [0]func() // prevent accidental copying
		buf   []E
		_     cpu.CacheLinePad
		front atomic.Uint32 // next slot to pop, written by the consumer
		_     cpu.CacheLinePad
		rear  atomic.Uint32 // next slot to push, written by the producer
		_     cpu.CacheLinePad
	}
)

// New initializes a Ring that can hold up to capacity values. A capacity
// less than 1 is treated as 1.
func New[E any](capacity int) *Ring[E] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[E]{buf: make([]E, capacity+1)}
}

// Push adds a value at the rear, returning false if the ring is full.
// It never blocks.
func (x *Ring[E]) Push(v E) bool {
	rear := x.rear.Load()
	next := x.next(rear)
	if next == x.front.Load() {
		return false
	}
	x.buf[rear] = v
	x.rear.Store(next)
	return true
}

// Pop removes a value from the front, returning false if the ring is empty.
func (x *Ring[E]) Pop() (v E, ok bool) {
	front := x.front.Load()
	if front == x.rear.Load() {
		return v, false
	}
	v = x.buf[front]
	var zero E
	x.buf[front] = zero
	x.front.Store(x.next(front))
	return v, true
}

// Len returns the number of values currently held. It is only a snapshot
// while the other side is active.
func (x *Ring[E]) Len() int {
	front, rear := x.front.Load(), x.rear.Load()
	if rear >= front {
		return int(rear - front)
	}
	return len(x.buf) - int(front-rear)
}

// Cap returns the maximum number of values the ring can hold.
func (x *Ring[E]) Cap() int { return len(x.buf) - 1 }

func (x *Ring[E]) next(i uint32) uint32 {
	i++
	if int(i) == len(x.buf) {
		return 0
	}
	return i
}
