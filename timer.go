package twine

import "time"

// Sleep suspends the running fiber of h for d.
//
// If the fiber is interrupted first (see [Fiber.Interrupt] and
// [Hub.Close]), the delayed call is canceled and Sleep returns the
// interrupting error.
func (h *Hub) Sleep(d time.Duration) error {
	_, err := h.Suspend(func(p *Pending) {
		dc := h.reactor.CallLater(d, func() { p.Resume(nil, nil) })
		p.OnSettle(func() { dc.Cancel() })
	})
	return err
}

// WithDeadline is like [Await], but gives up after d.
//
// If ar fires strictly before the deadline, its outcome is returned and
// the timer is canceled. Otherwise a *TimeoutError is returned, and
// whatever ar fires with later is ignored.
func WithDeadline[T any](h *Hub, d time.Duration, ar AsyncResult[T]) (T, error) {
	r := h.reactor
	deadline := r.Now().Add(d)
	timeout := &TimeoutError{After: d}

	v, err := h.Suspend(func(p *Pending) {
		dc := r.CallLater(d, func() { p.Resume(nil, timeout) })
		p.OnSettle(func() { dc.Cancel() })

		ar.AddCallbacks(
			func(v T) {
				if !r.Now().Before(deadline) {
					p.Resume(nil, timeout)
					return
				}
				p.Resume(v, nil)
			},
			func(err error) {
				if !r.Now().Before(deadline) {
					p.Resume(nil, timeout)
					return
				}
				p.Resume(nil, &PropagatedError{Err: err})
			},
		)
	})
	return result[T](v, err)
}

// WithTimeout runs f in a child fiber and waits for it for at most d.
// On timeout, the child is interrupted with the returned *TimeoutError
// if it is still suspended.
//
// A child that has succeeded by the time the timeout is reported wins,
// and its value is returned.
func WithTimeout[T any](h *Hub, d time.Duration, f func() (T, error)) (T, error) {
	child, def := spawn(h, f)

	v, err := WithDeadline[T](h, d, def)
	switch e := err.(type) {
	case nil:
		return v, nil
	case *TimeoutError:
		if !child.Done() {
			child.Interrupt(e)
			break
		}
		if cv, cerr := child.Result(); cerr == nil {
			t, _ := cv.(T)
			return t, nil
		}
	case *PropagatedError:
		err = e.Err
	}
	return v, err
}
