package utask

import (
	"fmt"
	"sync/atomic"

	"github.com/joeycumines/go-utask/internal/isrq"
	"github.com/joeycumines/go-utask/internal/tcb"
	"github.com/joeycumines/go-utask/pool"
	"github.com/joeycumines/go-utask/tick"
	"github.com/joeycumines/logiface"
)

// loopTestHooks provides injection points for deterministic testing.
type loopTestHooks struct {
	PostMigrate func() // Called after the ISR queue step, before dispatch
}

// Core is the scheduler. Instances must be initialized using the New
// factory.
//
// Methods are split between "normal" context (the goroutine running the
// loop, or any single goroutine while it is not running), and "interrupt"
// context (any goroutine). Interrupt context may only call Tick, GetTick,
// MessageSendISR, Alloc, Free, and the read-only introspection methods.
type Core struct {
	// Prevent copying
	_ [0]func()

	// HOOKS: Test hooks for deterministic testing
	testHooks *loopTestHooks

	logger     *logiface.Logger[logiface.Event]
	interrupts Interrupts
	store      *tcb.Store[entry]
	isr        *isrq.Ring[isrEntry]
	pool       *pool.Pool

	state *fastState

	stats counters

	now atomic.Uint32

	loopGoroutineID atomic.Uint64

	// busy guards against concurrent Run / RunOnce
	busy atomic.Bool

	width  tick.Width
	nested bool
}

// New initializes a Core, with every task control block free, an empty
// ISR queue, and a fresh memory pool.
func New(opts ...Option) (*Core, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	x := &Core{
		logger:     cfg.logger,
		interrupts: cfg.interrupts,
		store:      tcb.New[entry](cfg.tcbSlots, cfg.width),
		isr:        isrq.New[isrEntry](cfg.isrQueueSize),
		state:      new(fastState),
		width:      cfg.width,
		nested:     cfg.nested,
	}

	onCorruption := cfg.onCorruption
	x.pool, err = pool.New(&pool.Config{
		Logger:  cfg.logger,
		Limiter: cfg.limiter,
		OnCorruption: func(c pool.Corruption) {
			x.stats.corruptions.Add(1)
			if onCorruption != nil {
				onCorruption(c)
			}
		},
		Classes:  cfg.classes,
		Debug:    cfg.poolDebug,
		Disabled: cfg.poolDisabled,
	})
	if err != nil {
		return nil, fmt.Errorf(`%w: %w`, ErrInvalidOption, err)
	}

	x.now.Store(uint32(x.width.Mask(cfg.initialTick)))

	x.logger.Debug().
		Int(`tcb_slots`, x.store.Cap()).
		Int(`isr_queue_size`, x.isr.Cap()).
		Str(`tick_width`, x.width.String()).
		Bool(`pool_debug`, x.pool.Debug()).
		Bool(`pool_disabled`, x.pool.Disabled()).
		Log(`core initialized`)

	return x, nil
}

// Shutdown requests that the loop stop. If the loop is running, it stops at
// the start of its next iteration, leaving any pending messages in place.
// If the loop was never started, the core is terminated immediately.
// Shutdown is idempotent, does not block, and may be called from a handler.
func (x *Core) Shutdown() {
	if x == nil || x.state == nil {
		return
	}
	for {
		switch current := x.state.Load(); current {
		case StateAwake:
			if x.state.TryTransition(StateAwake, StateTerminated) {
				x.logger.Debug().Log(`core terminated`)
				return
			}
		case StateRunning:
			if x.state.TryTransition(StateRunning, StateTerminating) {
				x.logger.Debug().Log(`shutdown requested`)
				return
			}
		default:
			return
		}
	}
}

// Tick advances the tick counter by one, wrapping at the tick width. It is
// safe to call from interrupt context, and is normally driven by a periodic
// timer, at TicksPerSecond.
func (x *Core) Tick() {
	prev := x.interrupts.Disable()
	x.now.Store(uint32(x.width.Add(tick.Tick(x.now.Load()), 1)))
	x.interrupts.Restore(prev)
}

// GetTick returns the current tick counter. It is safe to call from any
// context.
func (x *Core) GetTick() tick.Tick {
	return tick.Tick(x.now.Load())
}

// Alloc allocates a message payload from the memory pool. It is safe to call
// from any context. See pool.Pool.Alloc.
func (x *Core) Alloc(size int) (*pool.Block, error) {
	prev := x.interrupts.Disable()
	defer x.interrupts.Restore(prev)
	return x.pool.Alloc(size)
}

// Free returns a payload to the memory pool. It is safe to call from any
// context. Nil and already released blocks are ignored. See pool.Pool.Free.
func (x *Core) Free(b *pool.Block) bool {
	if b == nil {
		return false
	}
	prev := x.interrupts.Disable()
	defer x.interrupts.Restore(prev)
	return x.pool.Free(b)
}

// State returns the current lifecycle state.
func (x *Core) State() LoopState {
	if x == nil || x.state == nil {
		return StateTerminated
	}
	return x.state.Load()
}

// QueueLen returns the number of messages in the dispatch queue, excluding
// any still in the ISR queue. Normal context only.
func (x *Core) QueueLen() int { return x.store.Len() }

// ISRQueueLen returns the number of messages waiting to be migrated from the
// ISR queue.
func (x *Core) ISRQueueLen() int { return x.isr.Len() }

// FreeTCBs returns the number of unused task control blocks. Normal context
// only.
func (x *Core) FreeTCBs() int { return x.store.FreeLen() }

// Width returns the tick counter width.
func (x *Core) Width() tick.Width { return x.width }

// Pending calls fn for each message in the dispatch queue, in dispatch
// order, until fn returns false. Normal context only, and fn must not call
// back into the Core.
func (x *Core) Pending(fn func(task *Task, id int, expire tick.Tick) bool) {
	x.store.Each(func(expire tick.Tick, e *entry) bool {
		return fn(e.task, e.id, expire)
	})
}

// isLoopThread checks if we're on the loop goroutine.
func (x *Core) isLoopThread() bool {
	loopID := x.loopGoroutineID.Load()
	if loopID == 0 {
		return false
	}
	return getGoroutineID() == loopID
}

// checkNormalContext guards operations on the dispatch queue.
func (x *Core) checkNormalContext() error {
	if x == nil || x.state == nil || x.state.IsTerminal() {
		return ErrLoopTerminated
	}
	if x.busy.Load() && !x.isLoopThread() {
		return ErrNotLoopContext
	}
	return nil
}
