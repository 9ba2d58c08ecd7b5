package utask

import (
	"time"

	"github.com/joeycumines/go-utask/tick"
)

const (
	// TicksPerSecond is the nominal tick rate, which a tick source is
	// expected to drive Core.Tick at.
	TicksPerSecond = 1000

	// Immediate is the delay for a message that is due on the next
	// dispatch.
	Immediate tick.Tick = 0
)

// Seconds converts n seconds to ticks. Like Minutes, Hours, and Ticks, the
// result is clamped to tick.DefaultWidth.MaxDelay, roughly 24.8 days at
// TicksPerSecond.
func Seconds(n uint32) tick.Tick { return clampTicks(uint64(n) * TicksPerSecond) }

// Minutes converts n minutes to ticks.
func Minutes(n uint32) tick.Tick { return clampTicks(uint64(n) * 60 * TicksPerSecond) }

// Hours converts n hours to ticks.
func Hours(n uint32) tick.Tick { return clampTicks(uint64(n) * 60 * 60 * TicksPerSecond) }

// Ticks converts a duration to ticks, truncating. Negative durations are
// treated as Immediate.
func Ticks(d time.Duration) tick.Tick {
	if d <= 0 {
		return Immediate
	}
	return clampTicks(uint64(d / (time.Second / TicksPerSecond)))
}

func clampTicks(n uint64) tick.Tick {
	if limit := uint64(tick.DefaultWidth.MaxDelay()); n > limit {
		return tick.Tick(limit)
	}
	return tick.Tick(n)
}
