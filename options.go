package utask

import (
	"fmt"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-utask/pool"
	"github.com/joeycumines/go-utask/tick"
	"github.com/joeycumines/logiface"
)

const (
	// DefaultTCBSlots is the default number of task control blocks, i.e. the
	// maximum number of pending messages.
	DefaultTCBSlots = 32

	// DefaultISRQueueSize is the default capacity of the interrupt context
	// queue.
	DefaultISRQueueSize = 8
)

// options holds configuration for Core creation.
type options struct {
	logger       *logiface.Logger[logiface.Event]
	limiter      *catrate.Limiter
	onCorruption func(pool.Corruption)
	interrupts   Interrupts
	classes      []pool.SizeClass
	tcbSlots     int
	isrQueueSize int
	initialTick  tick.Tick
	width        tick.Width
	poolDebug    bool
	poolDisabled bool
	nested       bool
}

// Option configures a Core instance.
type Option interface {
	apply(*options) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyFunc func(*options) error
}

func (o *optionImpl) apply(opts *options) error {
	return o.applyFunc(opts)
}

// WithTCBSlots sets the number of task control blocks, which bounds the
// number of messages that may be pending at once. Must be at least 1.
func WithTCBSlots(n int) Option {
	return &optionImpl{func(opts *options) error {
		if n < 1 {
			return fmt.Errorf(`%w: tcb slots must be positive: %d`, ErrInvalidOption, n)
		}
		opts.tcbSlots = n
		return nil
	}}
}

// WithISRQueueSize sets the number of messages that may be sent from
// interrupt context, before the loop migrates them. Must be at least 1.
func WithISRQueueSize(n int) Option {
	return &optionImpl{func(opts *options) error {
		if n < 1 {
			return fmt.Errorf(`%w: isr queue size must be positive: %d`, ErrInvalidOption, n)
		}
		opts.isrQueueSize = n
		return nil
	}}
}

// WithSizeClasses replaces the memory pool's size classes. Providing none
// disables the pool. See also pool.DefaultClasses.
func WithSizeClasses(classes ...pool.SizeClass) Option {
	return &optionImpl{func(opts *options) error {
		opts.classes = append([]pool.SizeClass{}, classes...)
		return nil
	}}
}

// WithPoolDebug enables guard signatures on every pool block, which are
// validated on release.
func WithPoolDebug(enabled bool) Option {
	return &optionImpl{func(opts *options) error {
		opts.poolDebug = enabled
		return nil
	}}
}

// WithPoolDisabled configures a memory pool that always fails to allocate.
func WithPoolDisabled() Option {
	return &optionImpl{func(opts *options) error {
		opts.poolDisabled = true
		return nil
	}}
}

// WithTickWidth sets the number of significant bits of the tick counter.
// Narrow widths make wraparound easy to exercise.
func WithTickWidth(width tick.Width) Option {
	return &optionImpl{func(opts *options) error {
		if !width.Valid() {
			return fmt.Errorf(`%w: tick width out of range: %d`, ErrInvalidOption, width)
		}
		opts.width = width
		return nil
	}}
}

// WithInitialTick sets the starting value of the tick counter, which is
// masked to the tick width.
func WithInitialTick(t tick.Tick) Option {
	return &optionImpl{func(opts *options) error {
		opts.initialTick = t
		return nil
	}}
}

// WithInterrupts sets the critical section primitive.
// Defaults to a new HostInterrupts.
func WithInterrupts(interrupts Interrupts) Option {
	return &optionImpl{func(opts *options) error {
		if interrupts == nil {
			return fmt.Errorf(`%w: nil interrupts`, ErrInvalidOption)
		}
		opts.interrupts = interrupts
		return nil
	}}
}

// WithNestedInterrupts brackets MessageSendISR with the critical section,
// which is necessary if more than one goroutine (or nested interrupt
// handlers) may send from interrupt context concurrently.
func WithNestedInterrupts(enabled bool) Option {
	return &optionImpl{func(opts *options) error {
		opts.nested = enabled
		return nil
	}}
}

// WithLogger configures structured logging. Defaults to nil (disabled).
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *options) error {
		opts.logger = logger
		return nil
	}}
}

// WithReportLimiter throttles the logging of memory pool corruption reports.
// The categories used are unspecified.
func WithReportLimiter(limiter *catrate.Limiter) Option {
	return &optionImpl{func(opts *options) error {
		opts.limiter = limiter
		return nil
	}}
}

// WithCorruptionHandler registers a callback that is called, synchronously,
// for every memory pool corruption report. It is called from within the
// critical section, and must not call back into the Core.
func WithCorruptionHandler(fn func(pool.Corruption)) Option {
	return &optionImpl{func(opts *options) error {
		opts.onCorruption = fn
		return nil
	}}
}

// resolveOptions applies Option instances to options.
func resolveOptions(opts []Option) (*options, error) {
	cfg := &options{
		tcbSlots:     DefaultTCBSlots,
		isrQueueSize: DefaultISRQueueSize,
		width:        tick.DefaultWidth,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.interrupts == nil {
		cfg.interrupts = new(HostInterrupts)
	}
	return cfg, nil
}
