package twine_test

import (
	"bytes"
	"errors"
	"log/slog"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/b97tsk/twine"
	"github.com/b97tsk/twine/reactortest"
)

var errBoom = errors.New("boom")

func newHub(opts ...twine.Option) (*twine.Hub, *reactortest.Clock) {
	c := reactortest.NewClock()
	opts = append([]twine.Option{twine.WithLogger(slog.New(slog.DiscardHandler))}, opts...)
	return twine.NewHub(c, opts...), c
}

func logTo(buf *bytes.Buffer) twine.Option {
	return twine.WithLogger(slog.New(slog.NewTextHandler(buf, nil)))
}

func mustPanicScheduling(t *testing.T, f func()) {
	t.Helper()

	defer func() {
		t.Helper()

		v := recover()
		if _, ok := v.(*twine.SchedulingError); !ok {
			t.Fatalf("want a *SchedulingError panic, got %#v", v)
		}
	}()

	f()
}

func TestRun(t *testing.T) {
	t.Run("Eager", func(t *testing.T) {
		h, _ := newHub()

		var (
			ran     bool
			current *twine.Fiber
		)

		fb := h.Run(func() error {
			ran = true
			current = h.Current()
			_, err := h.Suspend(func(p *twine.Pending) {})
			return err
		})

		if !ran {
			t.Fatal("Run should run the fiber up to its first suspension point")
		}
		if current != fb {
			t.Fatal("Current should return the running fiber")
		}
		if h.Current() != nil {
			t.Fatal("Current should return nil on the loop")
		}
		if fb.State() != twine.StateSuspended || h.Len() != 1 {
			t.Fatalf("want a suspended fiber, got %v", fb.State())
		}
	})
	t.Run("Completes", func(t *testing.T) {
		h, _ := newHub()

		fb := h.Run(func() error { return nil })

		if !fb.Done() || fb.State() != twine.StateDone || h.Len() != 0 {
			t.Fatalf("want a done fiber, got %v", fb.State())
		}
		if _, err := fb.Result(); err != nil {
			t.Fatal(err)
		}
	})
	t.Run("UniqueIDs", func(t *testing.T) {
		h, _ := newHub()

		a := h.Run(func() error { return nil })
		b := h.Run(func() error { return nil })

		if a.ID() == b.ID() {
			t.Fatal("fibers should have distinct IDs")
		}
		if a.Hub() != h {
			t.Fatal("Hub should return the hub that runs the fiber")
		}
	})
	t.Run("UnobservedFailure", func(t *testing.T) {
		var buf bytes.Buffer

		h, _ := newHub(logTo(&buf))

		fb := h.Run(func() error { return errBoom })

		if _, err := fb.Result(); err != errBoom {
			t.Fatalf("want %v, got %v", errBoom, err)
		}
		if !strings.Contains(buf.String(), "unobserved fiber failure") ||
			!strings.Contains(buf.String(), fb.ID().String()) {
			t.Fatalf("failure was not logged: %q", buf.String())
		}
	})
	t.Run("Panic", func(t *testing.T) {
		h, _ := newHub()

		fb := h.Run(func() error { panic("oops") })

		_, err := fb.Result()

		var pe *twine.PanicError
		if !errors.As(err, &pe) || pe.Value != "oops" || len(pe.Stack) == 0 {
			t.Fatalf("want a *PanicError with a stack, got %v", err)
		}
	})
	t.Run("Goexit", func(t *testing.T) {
		h, _ := newHub()

		fb := h.Run(func() error {
			runtime.Goexit()
			return nil
		})

		if _, err := fb.Result(); err != twine.ErrGoexit {
			t.Fatalf("want ErrGoexit, got %v", err)
		}
	})
	t.Run("Nested", func(t *testing.T) {
		h, c := newHub()

		var events []string

		h.Run(func() error {
			events = append(events, "outer start")
			h.Run(func() error {
				events = append(events, "inner start")
				if err := h.Sleep(time.Second); err != nil {
					return err
				}
				events = append(events, "inner end")
				return nil
			})
			events = append(events, "outer end")
			return nil
		})

		c.Advance(time.Second)

		want := []string{"outer start", "inner start", "outer end", "inner end"}
		if !slices.Equal(events, want) {
			t.Fatalf("want %v, got %v", want, events)
		}
	})
}

func TestSuspendResume(t *testing.T) {
	t.Run("Resume", func(t *testing.T) {
		h, _ := newHub()

		var got any

		fb := h.Run(func() error {
			v, err := h.Suspend(func(p *twine.Pending) {})
			got = v
			return err
		})

		h.Resume(fb, 42, nil)

		if got != 42 || !fb.Done() {
			t.Fatalf("want 42 and a done fiber, got %v and %v", got, fb.State())
		}
	})
	t.Run("ResumeWithError", func(t *testing.T) {
		h, _ := newHub()

		fb := h.Run(func() error {
			_, err := h.Suspend(func(p *twine.Pending) {})
			return err
		})

		h.Resume(fb, nil, errBoom)

		if _, err := fb.Result(); err != errBoom {
			t.Fatalf("want %v, got %v", errBoom, err)
		}
	})
	t.Run("ResumeDone", func(t *testing.T) {
		h, _ := newHub()

		fb := h.Run(func() error {
			_, err := h.Suspend(func(p *twine.Pending) {})
			return err
		})

		h.Resume(fb, nil, nil)

		mustPanicScheduling(t, func() { h.Resume(fb, nil, nil) })
	})
	t.Run("ResumeRunning", func(t *testing.T) {
		h, _ := newHub()

		fb := h.Run(func() error {
			h.Resume(h.Current(), nil, nil)
			return nil
		})

		_, err := fb.Result()

		var se *twine.SchedulingError
		if !errors.As(err, &se) || se.Fiber != fb {
			t.Fatalf("want a *SchedulingError for the fiber, got %v", err)
		}
	})
	t.Run("ResumeSettled", func(t *testing.T) {
		h, c := newHub()

		fb := h.Run(func() error {
			_, err := h.Suspend(func(p *twine.Pending) { p.Resume(nil, nil) })
			return err
		})

		mustPanicScheduling(t, func() { h.Resume(fb, nil, nil) })

		c.Tick()

		if !fb.Done() {
			t.Fatal("the first resume should still be delivered")
		}
	})
	t.Run("ResumeOtherHub", func(t *testing.T) {
		h1, _ := newHub()
		h2, _ := newHub()

		fb := h1.Run(func() error {
			_, err := h1.Suspend(func(p *twine.Pending) {})
			return err
		})

		mustPanicScheduling(t, func() { h2.Resume(fb, nil, nil) })
	})
	t.Run("SuspendOutsideFiber", func(t *testing.T) {
		h, _ := newHub()

		mustPanicScheduling(t, func() { h.Suspend(func(p *twine.Pending) {}) })
	})
	t.Run("FirstResumeWins", func(t *testing.T) {
		h, _ := newHub()

		var (
			pending *twine.Pending
			got     any
		)

		fb := h.Run(func() error {
			v, err := h.Suspend(func(p *twine.Pending) { pending = p })
			got = v
			return err
		})

		if pending.Fiber() != fb || pending.Settled() {
			t.Fatal("unexpected pending state")
		}
		if !pending.Resume("first", nil) {
			t.Fatal("the first Resume should win")
		}
		if pending.Resume("second", nil) {
			t.Fatal("the second Resume should lose")
		}
		if got != "first" {
			t.Fatalf("want %q, got %v", "first", got)
		}
	})
	t.Run("ResumeDuringRegistration", func(t *testing.T) {
		h, c := newHub()

		fb := h.Run(func() error {
			_, err := h.Suspend(func(p *twine.Pending) { p.Resume(nil, nil) })
			return err
		})

		if fb.State() != twine.StateSuspended {
			t.Fatalf("the fiber must not be re-entered from its registration, got %v", fb.State())
		}

		c.Tick()

		if !fb.Done() {
			t.Fatalf("want a done fiber, got %v", fb.State())
		}
	})
	t.Run("OnSettle", func(t *testing.T) {
		h, _ := newHub()

		var (
			pending *twine.Pending
			events  []string
		)

		h.Run(func() error {
			_, err := h.Suspend(func(p *twine.Pending) {
				pending = p
				p.OnSettle(func() { events = append(events, "settled") })
			})
			events = append(events, "resumed")
			return err
		})

		pending.Resume(nil, nil)
		pending.OnSettle(func() { events = append(events, "late") })

		if want := []string{"settled", "resumed", "late"}; !slices.Equal(events, want) {
			t.Fatalf("want %v, got %v", want, events)
		}
	})
}

func TestInterrupt(t *testing.T) {
	h, c := newHub()

	fb := h.Run(func() error { return h.Sleep(time.Second) })

	if !fb.Interrupt(nil) {
		t.Fatal("Interrupt should succeed on a suspended fiber")
	}
	if fb.Interrupt(nil) {
		t.Fatal("Interrupt should fail on a done fiber")
	}
	if _, err := fb.Result(); err != twine.ErrInterrupted {
		t.Fatalf("want ErrInterrupted, got %v", err)
	}
	if c.Pending() != 0 {
		t.Fatal("the timer should have been canceled")
	}
}

func TestClose(t *testing.T) {
	h, c := newHub()

	a := h.Run(func() error { return h.Sleep(time.Second) })
	b := h.Run(func() error { return h.Sleep(time.Hour) })

	h.Close()
	h.Close()

	for _, fb := range []*twine.Fiber{a, b} {
		if _, err := fb.Result(); err != twine.ErrHubClosed {
			t.Fatalf("want ErrHubClosed, got %v", err)
		}
	}
	if h.Len() != 0 || c.Pending() != 0 {
		t.Fatal("closing should leave no fibers and no timers behind")
	}

	ran := false
	fb := h.Run(func() error {
		ran = true
		return nil
	})

	if ran || !fb.Done() {
		t.Fatal("fibers started after Close should not run")
	}
	if _, err := fb.Result(); err != twine.ErrHubClosed {
		t.Fatalf("want ErrHubClosed, got %v", err)
	}
}
