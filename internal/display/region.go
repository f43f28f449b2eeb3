package display

import (
	"image"
	"math"
	"sync/atomic"

	"github.com/artsbaro/FreeRDP/internal/protocol"
)

// Accumulator consolidates damaged rectangles into one bounding union
// between throttle sample points. An explicit pending flag distinguishes
// "nothing buffered" from a region touching the origin, so no coordinate
// value is overloaded as a sentinel.
type Accumulator struct {
	bounds  image.Rectangle
	pending bool
}

// Extend grows the union to cover r.
func (a *Accumulator) Extend(r image.Rectangle) {
	if !a.pending {
		a.bounds = r
		a.pending = true
		return
	}
	a.bounds = a.bounds.Union(r)
}

// Flush returns the accumulated union and resets the accumulator. The
// boolean is false when nothing was buffered.
func (a *Accumulator) Flush() (image.Rectangle, bool) {
	if !a.pending {
		return image.Rectangle{}, false
	}
	out := a.bounds
	a.bounds = image.Rectangle{}
	a.pending = false
	return out, true
}

// Pending reports whether a region is buffered.
func (a *Accumulator) Pending() bool { return a.pending }

// Throttle samples region events at the configured IPS rate. Only the
// event counter is atomic: it is observed across threads, while the
// accumulator is touched by the single producer thread only.
type Throttle struct {
	counter atomic.Uint32
	acc     Accumulator
}

// Admit records one region event. For throttled quantities it returns the
// consolidated union on every (100/quantity)-th event and drops the rest;
// for any other quantity every event passes through unmodified. Fullscreen
// and cursor updates never go through the throttle.
func (t *Throttle) Admit(r image.Rectangle, quantity int) (image.Rectangle, bool) {
	n := t.next()

	if !protocol.ThrottledQuantity(quantity) {
		return r, true
	}

	t.acc.Extend(r)

	if n%uint32(100/quantity) != 0 {
		return image.Rectangle{}, false
	}

	merged, ok := t.acc.Flush()
	if !ok {
		// Unreachable: Extend ran just above. Kept as a safe fallback.
		return r, true
	}
	return merged, true
}

// next increments the event counter, wrapping to 0 past MaxInt32 so the
// value stays non-negative in any signed representation.
func (t *Throttle) next() uint32 {
	for {
		cur := t.counter.Load()
		next := cur + 1
		if cur >= math.MaxInt32 {
			next = 0
		}
		if t.counter.CompareAndSwap(cur, next) {
			return next
		}
	}
}

// Counter returns the current event count.
func (t *Throttle) Counter() uint32 { return t.counter.Load() }
