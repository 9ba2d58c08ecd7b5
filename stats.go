package utask

import (
	"sync/atomic"

	"github.com/joeycumines/go-utask/pool"
)

type (
	// Stats is a point in time snapshot of a Core's counters.
	Stats struct {
		// Pool contains one entry per memory pool size class, in ascending
		// size order.
		Pool []pool.ClassStats

		// Dispatched is the number of messages whose handler was called.
		Dispatched uint64
		// Cancelled is the number of messages removed by MessageCancel.
		Cancelled uint64
		// ISRMigrated is the number of messages moved from the ISR queue to
		// the dispatch queue.
		ISRMigrated uint64
		// ISRDropped is the number of messages dropped from the ISR queue,
		// due to task control block exhaustion.
		ISRDropped uint64
		// HandlerPanics is the number of handler calls that panicked.
		HandlerPanics uint64
		// Corruptions is the number of memory pool corruption reports.
		Corruptions uint64

		// FreeTCBs is the number of unused task control blocks.
		FreeTCBs int
		// QueueLen is the number of messages in the dispatch queue.
		QueueLen int
		// ISRQueueLen is the number of messages in the ISR queue.
		ISRQueueLen int
	}

	counters struct {
		dispatched  atomic.Uint64
		cancelled   atomic.Uint64
		isrMigrated atomic.Uint64
		isrDropped  atomic.Uint64
		panics      atomic.Uint64
		corruptions atomic.Uint64
	}
)

// Stats returns a snapshot of the Core's counters. Normal context only.
func (x *Core) Stats() Stats {
	prev := x.interrupts.Disable()
	poolStats := x.pool.Stats()
	x.interrupts.Restore(prev)

	return Stats{
		Pool:          poolStats,
		Dispatched:    x.stats.dispatched.Load(),
		Cancelled:     x.stats.cancelled.Load(),
		ISRMigrated:   x.stats.isrMigrated.Load(),
		ISRDropped:    x.stats.isrDropped.Load(),
		HandlerPanics: x.stats.panics.Load(),
		Corruptions:   x.stats.corruptions.Load(),
		FreeTCBs:      x.store.FreeLen(),
		QueueLen:      x.store.Len(),
		ISRQueueLen:   x.isr.Len(),
	}
}
