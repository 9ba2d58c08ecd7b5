package utask

import (
	"context"
	"fmt"
	"runtime"

	"github.com/joeycumines/go-utask/internal/tcb"
)

// Run runs the dispatch loop on the calling goroutine, blocking until
// Shutdown is observed (nil is returned), or ctx is cancelled (ctx.Err() is
// returned). In both cases the core is terminated, and pending messages are
// left in place.
//
// Each iteration migrates at most one message from the ISR queue, then
// dispatches at most one due message. The loop never sleeps, and yields the
// processor (runtime.Gosched) only when an iteration did nothing.
func (x *Core) Run(ctx context.Context) error {
	if x == nil || x.state == nil {
		return ErrLoopTerminated
	}

	if x.isLoopThread() {
		return ErrReentrantRun
	}

	if !x.busy.CompareAndSwap(false, true) {
		return ErrLoopAlreadyRunning
	}
	defer x.busy.Store(false)

	if !x.state.TryTransition(StateAwake, StateRunning) {
		if x.state.IsTerminal() {
			return ErrLoopTerminated
		}
		return ErrLoopAlreadyRunning
	}

	x.loopGoroutineID.Store(getGoroutineID())
	defer x.loopGoroutineID.Store(0)

	x.logger.Debug().Log(`loop started`)

	done := ctx.Done()
	for {
		select {
		case <-done:
			x.terminate()
			return ctx.Err()
		default:
		}

		if x.state.Load() == StateTerminating {
			x.terminate()
			return nil
		}

		if !x.step() {
			runtime.Gosched()
		}
	}
}

// RunOnce performs a single iteration of the dispatch loop, on the calling
// goroutine, reporting whether any work was done. It is intended for
// embedding the loop within another (e.g. a test, or a foreground loop),
// and may not be used while Run is active.
func (x *Core) RunOnce() (bool, error) {
	if x == nil || x.state == nil {
		return false, ErrLoopTerminated
	}

	if x.isLoopThread() {
		return false, ErrReentrantRun
	}

	if !x.busy.CompareAndSwap(false, true) {
		return false, ErrLoopAlreadyRunning
	}
	defer x.busy.Store(false)

	switch x.state.Load() {
	case StateAwake:
	case StateRunning:
		return false, ErrLoopAlreadyRunning
	default:
		return false, ErrLoopTerminated
	}

	x.loopGoroutineID.Store(getGoroutineID())
	defer x.loopGoroutineID.Store(0)

	return x.step(), nil
}

func (x *Core) terminate() {
	x.state.Store(StateTerminated)
	x.logger.Debug().
		Int(`pending`, x.store.Len()).
		Int(`pending_isr`, x.isr.Len()).
		Log(`loop stopped`)
}

// step is one iteration, excluding the shutdown check.
func (x *Core) step() (worked bool) {
	if v, ok := x.isr.Pop(); ok {
		worked = true
		x.migrate(v)
	}

	if x.testHooks != nil && x.testHooks.PostMigrate != nil {
		x.testHooks.PostMigrate()
	}

	if ref, ok := x.store.Front(); ok && x.width.AfterEq(x.GetTick(), x.store.Expire(ref)) {
		x.store.Dequeue()
		x.dispatch(ref)
		worked = true
	}

	return worked
}

// migrate moves a message from the ISR queue to the dispatch queue, dropping
// it if there are no free task control blocks.
func (x *Core) migrate(v isrEntry) {
	ref, ok := x.store.Alloc()
	if !ok {
		x.stats.isrDropped.Add(1)
		x.Free(v.msg)
		x.logger.Warning().
			Int(`id`, v.id).
			Log(`isr message dropped: no free tcb`)
		return
	}
	*x.store.Value(ref) = v.entry
	x.store.SetExpire(ref, v.expire)
	x.store.Enqueue(ref)
	x.stats.isrMigrated.Add(1)
}

// dispatch calls the handler for a dequeued message, then releases both the
// payload and the task control block.
func (x *Core) dispatch(ref tcb.Ref) {
	e := *x.store.Value(ref)

	if b := x.logger.Trace(); b.Enabled() {
		b.Int(`id`, e.id).
			Str(`origin`, e.origin.String()).
			Uint64(`expire`, uint64(x.store.Expire(ref))).
			Uint64(`now`, uint64(x.GetTick())).
			Log(`dispatching message`)
	}

	x.safeExecute(e)

	x.Free(e.msg)
	x.store.Free(ref)
	x.stats.dispatched.Add(1)
}

// safeExecute calls a handler with panic recovery.
func (x *Core) safeExecute(e entry) {
	defer func() {
		if r := recover(); r != nil {
			x.stats.panics.Add(1)
			x.logger.Err().
				Int(`id`, e.id).
				Str(`panic`, fmt.Sprint(r)).
				Log(`handler panicked`)
		}
	}()

	e.task.Handler(e.task, e.id, e.msg)
}
