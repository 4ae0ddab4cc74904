package kernel

import (
	"math"
	"time"
)

// Ticks is the kernel's native time unit.
type Ticks uint32

// WaitForever is the timeout sentinel that never expires.
const WaitForever Ticks = math.MaxUint32

// NoWait polls without blocking.
const NoWait Ticks = 0

// Forever is the Duration counterpart of WaitForever.
const Forever time.Duration = math.MaxInt64

// DefaultTickFrequency is the tick rate in Hz most kernels run with.
const DefaultTickFrequency uint32 = 1000

// DurationToTicks converts d into ticks at freq Hz.
// Forever maps to WaitForever, zero and negative durations to NoWait.
// A positive duration never rounds down to NoWait, and finite durations
// saturate just below WaitForever.
func DurationToTicks(d time.Duration, freq uint32) Ticks {
	if d == Forever {
		return WaitForever
	}
	if d <= 0 {
		return NoWait
	}
	if freq == 0 {
		freq = DefaultTickFrequency
	}
	hz := uint64(freq)
	// ceil(d * hz / 1s) without overflowing on large d.
	sec, rem := uint64(d/time.Second), uint64(d%time.Second)
	ticks := sec * hz
	if sec != 0 && ticks/sec != hz {
		return WaitForever - 1
	}
	ticks += (rem*hz + uint64(time.Second) - 1) / uint64(time.Second)
	if ticks >= uint64(WaitForever) {
		return WaitForever - 1
	}
	return Ticks(ticks)
}

// Duration converts ticks at freq Hz back into time.Duration.
func (t Ticks) Duration(freq uint32) time.Duration {
	if t == WaitForever {
		return Forever
	}
	if freq == 0 {
		freq = DefaultTickFrequency
	}
	return time.Duration(uint64(t) * uint64(time.Second) / uint64(freq))
}
