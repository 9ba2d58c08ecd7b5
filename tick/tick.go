// Package tick implements the scheduler's unit of time: a fixed-width,
// wrapping counter, and the signed-difference comparisons used to order
// expirations across a wraparound.
//
// All comparisons are only meaningful while the distance between the two
// values being compared is less than half of the counter's range, see
// [Width.MaxDelay].
package tick

import (
	"fmt"
)

const (
	// DefaultWidth is the width used by the package-level predicates, and
	// the default counter width of the scheduler.
	DefaultWidth Width = 32

	// MinWidth is the smallest supported counter width.
	MinWidth Width = 2

	// MaxWidth is the largest supported counter width.
	MaxWidth Width = 32
)

type (
	// Tick is a counter value. Only the low [Width] bits are significant.
	Tick uint32

	// Width is the number of significant bits of a [Tick] counter.
	// Narrow widths exist mainly to make wraparound reachable in tests.
	Width uint8
)

// Valid reports whether w is within [MinWidth, MaxWidth].
func (w Width) Valid() bool {
	return w >= MinWidth && w <= MaxWidth
}

// Mask returns t truncated to the width.
func (w Width) Mask(t Tick) Tick {
	return t & w.bits()
}

// Add returns t+d, wrapped at the width.
func (w Width) Add(t, d Tick) Tick {
	return (t + d) & w.bits()
}

// Sub returns the signed distance a-b, interpreted at the width.
func (w Width) Sub(a, b Tick) int64 {
	d := (a - b) & w.bits()
	if d&w.sign() != 0 {
		return int64(d) - int64(w.bits()) - 1
	}
	return int64(d)
}

// MaxDelay is the largest delay that still compares correctly against the
// current tick. Callers must not schedule further ahead than this.
func (w Width) MaxDelay() Tick {
	return w.sign() - 1
}

// After reports whether a is strictly after b.
func (w Width) After(a, b Tick) bool {
	return w.Sub(b, a) < 0
}

// Before reports whether a is strictly before b.
func (w Width) Before(a, b Tick) bool {
	return w.Sub(a, b) < 0
}

// AfterEq reports whether a is after, or equal to, b.
func (w Width) AfterEq(a, b Tick) bool {
	return w.Sub(a, b) >= 0
}

// BeforeEq reports whether a is before, or equal to, b.
func (w Width) BeforeEq(a, b Tick) bool {
	return w.Sub(b, a) >= 0
}

func (w Width) String() string {
	return fmt.Sprintf("%d-bit", uint8(w))
}

func (w Width) bits() Tick {
	if w >= 32 {
		return ^Tick(0)
	}
	return Tick(1)<<w - 1
}

func (w Width) sign() Tick {
	return Tick(1) << (w - 1)
}

// After reports whether a is strictly after b, at [DefaultWidth].
func After(a, b Tick) bool { return DefaultWidth.After(a, b) }

// Before reports whether a is strictly before b, at [DefaultWidth].
func Before(a, b Tick) bool { return DefaultWidth.Before(a, b) }

// AfterEq reports whether a is after or equal to b, at [DefaultWidth].
func AfterEq(a, b Tick) bool { return DefaultWidth.AfterEq(a, b) }

// BeforeEq reports whether a is before or equal to b, at [DefaultWidth].
func BeforeEq(a, b Tick) bool { return DefaultWidth.BeforeEq(a, b) }
