package pool

import (
	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

const (
	// Align is the allocation quantum. Each block's stride is rounded up to a
	// multiple of it.
	Align = 8
)

type (
	// SizeClass configures one fixed-block arena.
	SizeClass struct {
		// Size is the largest request served by this class, in bytes.
		Size int

		// Count is the number of blocks. Classes with a zero count are
		// dropped.
		Count int
	}

	// Config models the construction parameters of a Pool.
	// A nil Config is equivalent to DefaultClasses, without debug support.
	Config struct {
		// Logger receives corruption reports, at warning level. May be nil.
		Logger *logiface.Logger[logiface.Event]

		// Limiter throttles the logging of corruption reports, per size
		// class and kind. May be nil, in which case nothing is throttled.
		// OnCorruption is never throttled.
		Limiter *catrate.Limiter

		// OnCorruption is called, synchronously, for every detected
		// corruption. It must not call back into the Pool.
		OnCorruption func(Corruption)

		// Classes defines the size classes, in any order.
		// **Defaults to DefaultClasses, if nil.** An empty, non-nil slice
		// results in a disabled pool.
		Classes []SizeClass

		// Debug enables guard signatures, fill bytes and the associated
		// checks on Free.
		Debug bool

		// Disabled forces an always-failing allocator, regardless of
		// Classes.
		Disabled bool
	}
)

// DefaultClasses returns the default size classes: 16x8, 8x16, 4x32, 2x64.
func DefaultClasses() []SizeClass {
	return []SizeClass{
		{Size: 8, Count: 16},
		{Size: 16, Count: 8},
		{Size: 32, Count: 4},
		{Size: 64, Count: 2},
	}
}
