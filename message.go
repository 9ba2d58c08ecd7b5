package utask

import (
	"github.com/joeycumines/go-utask/pool"
	"github.com/joeycumines/go-utask/tick"
)

const (
	originApp origin = iota
	originISR
)

type (
	// Handler receives a message, on the loop goroutine. The payload (which
	// may be nil) is released back to the pool once the handler returns, and
	// must not be retained.
	Handler func(task *Task, id int, msg *pool.Block)

	// Task is a message destination. Messages are matched for cancellation
	// by the pair of *Task (pointer identity) and id, and the Core never
	// takes ownership of a Task.
	Task struct {
		Handler Handler
	}

	entry struct {
		task   *Task
		msg    *pool.Block
		id     int
		origin origin
	}

	isrEntry struct {
		entry
		expire tick.Tick
	}

	origin uint8
)

func (t *Task) valid() bool {
	return t != nil && t.Handler != nil
}

func (o origin) String() string {
	if o == originISR {
		return `isr`
	}
	return `app`
}

// MessageSend schedules a message for dispatch to task, delay ticks from
// now, after every already queued message with an expiry at or before that
// point. Normal context only.
//
// The delay must not exceed Width().MaxDelay(). On success, ownership of msg
// (which may be nil) passes to the Core, otherwise it remains with the
// caller.
func (x *Core) MessageSend(task *Task, id int, msg *pool.Block, delay tick.Tick) error {
	if !task.valid() {
		return ErrInvalidTask
	}
	if err := x.checkNormalContext(); err != nil {
		return err
	}

	ref, ok := x.store.Alloc()
	if !ok {
		x.logger.Debug().
			Int(`id`, id).
			Log(`message send failed: no free tcb`)
		return ErrNoTCB
	}

	*x.store.Value(ref) = entry{
		task:   task,
		msg:    msg,
		id:     id,
		origin: originApp,
	}
	x.store.SetExpire(ref, x.width.Add(x.GetTick(), delay))
	x.store.Enqueue(ref)

	return nil
}

// MessageSendISR schedules a message for immediate dispatch to task. It is
// safe to call from interrupt context, and never blocks.
//
// Messages are held in a fixed size queue until the loop migrates them into
// the dispatch queue, at most one per iteration. A message that cannot be
// migrated, because every task control block is in use, is dropped, and its
// payload released.
//
// Unless WithNestedInterrupts is enabled, at most one goroutine may call
// MessageSendISR at a time. On success, ownership of msg passes to the Core.
func (x *Core) MessageSendISR(task *Task, id int, msg *pool.Block) error {
	if !task.valid() {
		return ErrInvalidTask
	}
	if x.state == nil || x.state.Load() == StateTerminated {
		return ErrLoopTerminated
	}

	v := isrEntry{
		entry: entry{
			task:   task,
			msg:    msg,
			id:     id,
			origin: originISR,
		},
		expire: x.GetTick(),
	}

	if x.nested {
		prev := x.interrupts.Disable()
		defer x.interrupts.Restore(prev)
	}

	if !x.isr.Push(v) {
		return ErrISRQueueFull
	}

	return nil
}

// MessageCancel removes every message in the dispatch queue that matches the
// task and id, releasing their payloads, and returns the number removed.
// Messages still in the ISR queue are not affected. Normal context only.
func (x *Core) MessageCancel(task *Task, id int) (int, error) {
	if task == nil {
		return 0, ErrInvalidTask
	}
	if err := x.checkNormalContext(); err != nil {
		return 0, err
	}

	count := x.store.Cancel(
		func(e *entry) bool { return e.task == task && e.id == id },
		func(e *entry) { x.Free(e.msg) },
	)

	if count != 0 {
		x.stats.cancelled.Add(uint64(count))
		x.logger.Debug().
			Int(`id`, id).
			Int(`count`, count).
			Log(`messages cancelled`)
	}

	return count, nil
}
