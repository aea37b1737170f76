// Package reactortest provides a simulated reactor for testing code
// built on twine: a manually advanced clock, a fake transport, an
// in-memory loopback between two protocols, and a fake TCP network.
//
// Everything here is single-threaded. Tests drive time and I/O
// explicitly, so every interleaving is deterministic.
package reactortest

import (
	"time"

	"github.com/b97tsk/twine"
	"github.com/b97tsk/twine/internal/pqueue"
)

// Epoch is the time a new [Clock] starts at.
var Epoch = time.Unix(0, 0).UTC()

// Clock is a [twine.Reactor] whose time only moves when told to.
//
// The zero value is not usable; create one with [NewClock].
type Clock struct {
	now    time.Time
	calls  pqueue.Queue[*call]
	active int
}

// NewClock creates a [Clock] set to [Epoch].
func NewClock() *Clock {
	return &Clock{now: Epoch}
}

type callState uint8

const (
	callPending callState = iota
	callRan
	callCanceled
)

type call struct {
	clock *Clock
	when  time.Time
	f     func()
	state callState
}

func (c *call) Less(other *call) bool {
	return c.when.Before(other.when)
}

func (c *call) Cancel() bool {
	if c.state != callPending {
		return false
	}
	c.state = callCanceled
	c.clock.active--
	return true
}

func (c *call) Active() bool {
	return c.state == callPending
}

// Now implements [twine.Reactor].
func (c *Clock) Now() time.Time { return c.now }

// CallLater implements [twine.Reactor]. Negative delays count as zero.
func (c *Clock) CallLater(d time.Duration, f func()) twine.DelayedCall {
	if d < 0 {
		d = 0
	}
	x := &call{clock: c, when: c.now.Add(d), f: f}
	c.calls.Push(x)
	c.active++
	return x
}

// Advance moves the clock forward by d and runs every call that has
// become due, in order of due time. Calls scheduled while advancing run
// too if they are due by the new time.
func (c *Clock) Advance(d time.Duration) {
	if d < 0 {
		panic("reactortest: negative advance")
	}
	c.now = c.now.Add(d)
	for !c.calls.Empty() && !c.calls.Peek().when.After(c.now) {
		x := c.calls.Pop()
		if x.state != callPending {
			continue
		}
		x.state = callRan
		c.active--
		x.f()
	}
}

// Tick runs every call that is already due, without moving the clock.
func (c *Clock) Tick() { c.Advance(0) }

// Pump advances the clock by each of the given steps in turn.
func (c *Clock) Pump(steps ...time.Duration) {
	for _, d := range steps {
		c.Advance(d)
	}
}

// Pending returns the number of calls that have neither run nor been
// canceled.
func (c *Clock) Pending() int { return c.active }
