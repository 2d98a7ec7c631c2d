// Package counter implements fixed-width wrapping counters whose values are
// a pure function of elapsed time. A counter never stores its "current"
// value; every read recomputes it from the engine epoch, the configured
// rate, and the acceleration factor, so concurrent readers always agree and
// wraps happen at exactly the instant the arithmetic says they do.
package counter

import (
	"math"
	"time"
)

// Width selects the counter's modulo domain.
type Width int

const (
	Width32 Width = 32 // Counter32-style, wraps at 2^32
	Width64 Width = 64 // Counter64-style, wraps at 2^64
)

// Max returns the largest representable value for the width.
func (w Width) Max() uint64 {
	if w == Width32 {
		return math.MaxUint32
	}
	return math.MaxUint64
}

func (w Width) mask() uint64 {
	if w == Width32 {
		return math.MaxUint32
	}
	return math.MaxUint64
}

const two64 = 18446744073709551616.0 // 2^64 as float64

// Counter is a wrapping counter advancing at rate*acceleration units per
// second. Value is width-masked; the underlying total is tracked modulo
// 2^64 regardless of width so a 32-bit counter's wrap count stays exact.
//
// Rate changes are piecewise: SetRate folds the increments accrued at the
// old rate into a closed total and starts a new segment, so past values are
// never rewritten. Setting the same rate again is a no-op, which keeps a
// steady counter on the exact single-segment formula
//
//	value = (initial + floor(elapsed*rate*accel)) mod (max+1)
//
// with no intermediate rounding. Per-segment increments are computed in
// float64 and are exact below 2^53 increments per segment; beyond that the
// low digits degrade.
type Counter struct {
	width   Width
	initial uint64
	rate    float64 // units per second, before acceleration
	accel   float64
	epoch   time.Time

	segStart time.Time // start of the current rate segment
	closed   uint64    // increments from closed segments, mod 2^64
	overflow uint64    // 2^64 carries accumulated by closed segments
}

// Info is a point-in-time report of a counter's wrap state.
type Info struct {
	Value         uint64
	WrapCount     uint64
	SecondsToWrap float64
	Wraps         bool // false when the rate is zero and the value is frozen
}

// New creates a counter. The epoch anchors elapsed-time measurement and is
// shared engine-wide; it never resets while the process runs. The initial
// value is reduced into the width's domain.
func New(width Width, initial uint64, rate, accel float64, epoch time.Time) *Counter {
	if accel <= 0 {
		accel = 1
	}
	if rate < 0 {
		rate = 0
	}
	return &Counter{
		width:    width,
		initial:  initial & width.mask(),
		rate:     rate,
		accel:    accel,
		epoch:    epoch,
		segStart: epoch,
	}
}

// segIncrements returns the fractional increments accrued in the open
// segment at the given instant. Instants before the segment start clamp to
// zero so a skewed clock can never run a counter backwards.
func (c *Counter) segIncrements(now time.Time) float64 {
	if !now.After(c.segStart) {
		return 0
	}
	return now.Sub(c.segStart).Seconds() * c.rate * c.accel
}

// liveTotal returns the counter's total increments since the epoch, modulo
// 2^64, together with the number of 2^64 carries.
func (c *Counter) liveTotal(now time.Time) (total, carries uint64) {
	f := c.segIncrements(now)
	carries = c.overflow
	if f >= two64 {
		carries += uint64(f / two64)
		f = math.Mod(f, two64)
	}
	incr := uint64(f)
	total = c.closed + incr
	if total < c.closed {
		carries++
	}
	return total, carries
}

// Value returns the counter value at the given instant.
func (c *Counter) Value(now time.Time) uint64 {
	total, _ := c.liveTotal(now)
	return (c.initial + total) & c.width.mask()
}

// Info returns the value plus wrap bookkeeping at the given instant.
// WrapCount counts completed wraps of the total increments, so a counter
// that has just returned to its initial value reports exactly one wrap.
func (c *Counter) Info(now time.Time) Info {
	total, carries := c.liveTotal(now)
	info := Info{
		Value: (c.initial + total) & c.width.mask(),
	}
	if c.width == Width32 {
		info.WrapCount = (carries << 32) + (total >> 32)
	} else {
		info.WrapCount = carries
	}

	effective := c.rate * c.accel
	if effective <= 0 {
		return info // frozen: Wraps=false is the "never" answer
	}
	period := float64(c.width.Max()) + 1
	position := math.Mod(float64(c.initial)+math.Mod(float64(total), period), period)
	info.Wraps = true
	info.SecondsToWrap = (period - position) / effective
	return info
}

// Rate returns the configured rate, before acceleration.
func (c *Counter) Rate() float64 {
	return c.rate
}

// Acceleration returns the counter's acceleration factor.
func (c *Counter) Acceleration() float64 {
	return c.accel
}

// Epoch returns the engine epoch the counter measures elapsed time from.
func (c *Counter) Epoch() time.Time {
	return c.epoch
}

// SetRate switches the counter to a new rate at the given instant. The
// increments accrued so far are folded into the closed total first, so the
// change never affects values already observed. Setting the current rate
// again does nothing.
func (c *Counter) SetRate(now time.Time, rate float64) {
	if rate < 0 {
		rate = 0
	}
	if rate == c.rate {
		return
	}
	c.closed, c.overflow = c.liveTotal(now)
	if now.After(c.segStart) {
		c.segStart = now
	}
	c.rate = rate
}
