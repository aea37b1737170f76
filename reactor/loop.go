// Package reactor provides Loop, a callback-driven event loop that
// implements [twine.TCPReactor] on top of the net package.
//
// All callbacks, timers and protocol events run on the goroutine that
// calls [Loop.Run], one at a time. Socket I/O happens on helper
// goroutines that post their results into the loop.
package reactor

import (
	"log/slog"
	"sync"
	"time"

	"github.com/b97tsk/twine"
	"github.com/b97tsk/twine/internal/pqueue"
	"github.com/someonegg/gox/syncx"
)

// A Loop runs callbacks in a single-threaded manner.
//
// Post is safe for concurrent use; everything else must be called from
// the loop itself, that is, from a callback or from a fiber the loop
// drives.
type Loop struct {
	logger *slog.Logger

	mu     sync.Mutex
	posted []func()
	ports  map[*port]struct{}
	conns  map[*transport]struct{}

	wake   chan struct{}
	timers pqueue.Queue[*timer]

	stopOnce sync.Once
	stopD    syncx.DoneChan
	doneD    syncx.DoneChan
}

// An Option configures a [Loop].
type Option func(l *Loop)

// WithLogger sets the logger a [Loop] reports I/O failures to.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a [Loop]. It does nothing until Run is called.
func New(opts ...Option) *Loop {
	l := &Loop{
		logger: slog.Default(),
		ports:  make(map[*port]struct{}),
		conns:  make(map[*transport]struct{}),
		wake:   make(chan struct{}, 1),
		stopD:  syncx.NewDoneChan(),
		doneD:  syncx.NewDoneChan(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type timer struct {
	when     time.Time
	f        func()
	canceled bool
	fired    bool
}

func (t *timer) Less(other *timer) bool {
	return t.when.Before(other.when)
}

func (t *timer) Cancel() bool {
	if t.canceled || t.fired {
		return false
	}
	t.canceled = true
	return true
}

func (t *timer) Active() bool {
	return !t.canceled && !t.fired
}

// Now implements [twine.Reactor].
func (l *Loop) Now() time.Time { return time.Now() }

// CallLater implements [twine.Reactor].
func (l *Loop) CallLater(d time.Duration, f func()) twine.DelayedCall {
	t := &timer{when: time.Now().Add(d), f: f}
	l.timers.Push(t)
	return t
}

// Post queues f to run on the loop. Post is safe for concurrent use.
// Functions posted after the loop has stopped never run.
func (l *Loop) Post(f func()) {
	l.mu.Lock()
	l.posted = append(l.posted, f)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run runs the loop until Stop is called.
//
// Run must not be called twice.
func (l *Loop) Run() error {
	defer l.doneD.SetDone()

	var tm *time.Timer

	for {
		if l.stopD.R().Done() {
			return nil
		}

		l.runPosted()
		l.runTimers()

		var tc <-chan time.Time

		if !l.timers.Empty() {
			d := time.Until(l.timers.Peek().when)
			if tm == nil {
				tm = time.NewTimer(d)
			} else {
				tm.Reset(d)
			}
			tc = tm.C
		}

		select {
		case <-l.wake:
		case <-tc:
		case <-l.stopD:
		}

		if tm != nil {
			tm.Stop()
		}
	}
}

func (l *Loop) runPosted() {
	l.mu.Lock()
	posted := l.posted
	l.posted = nil
	l.mu.Unlock()

	for i, f := range posted {
		posted[i] = nil
		f()
	}
}

func (l *Loop) runTimers() {
	now := time.Now()
	for !l.timers.Empty() && !l.timers.Peek().when.After(now) {
		t := l.timers.Pop()
		if t.canceled {
			continue
		}
		t.fired = true
		t.f()
	}
}

// Stop makes Run return after the callback being run, if any.
// Stop is safe for concurrent use and may be called many times.
func (l *Loop) Stop() {
	l.stopOnce.Do(l.stopD.SetDone)
}

// Done returns a channel that is closed once Run has returned.
func (l *Loop) Done() syncx.DoneChanR {
	return l.doneD.R()
}

// Shutdown stops the loop and closes every listener and connection.
// Connections are dropped without flushing.
func (l *Loop) Shutdown() error {
	l.Stop()

	l.mu.Lock()
	ports := make([]*port, 0, len(l.ports))
	for p := range l.ports {
		ports = append(ports, p)
	}
	conns := make([]*transport, 0, len(l.conns))
	for t := range l.conns {
		conns = append(conns, t)
	}
	l.mu.Unlock()

	var firstErr error

	for _, p := range ports {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for _, t := range conns {
		t.abort()
	}

	return firstErr
}
