package twine

// Await suspends the running fiber of h until ar fires, and returns the
// value it fired with. A failure of ar is returned as a *PropagatedError
// wrapping the original.
//
// If ar has already fired, the fiber still resumes on a later loop tick,
// never from within Await's own registration.
func Await[T any](h *Hub, ar AsyncResult[T]) (T, error) {
	v, err := h.Suspend(func(p *Pending) {
		ar.AddCallbacks(
			func(v T) { p.Resume(v, nil) },
			func(err error) { p.Resume(nil, &PropagatedError{Err: err}) },
		)
	})
	return result[T](v, err)
}

// Spawn runs f in a new fiber of h and returns a [Deferred] that fires
// with f's outcome once the fiber ends.
//
// Like [Hub.Run], the fiber runs up to its first suspension point before
// Spawn returns; if it never suspends, the returned Deferred has already
// fired.
//
// A *PropagatedError returned by f is unwrapped once, so that
// Spawn(h, func() (T, error) { return Await(h, d) }) fails with exactly
// what d failed with.
func Spawn[T any](h *Hub, f func() (T, error)) *Deferred[T] {
	_, d := spawn(h, f)
	return d
}

func spawn[T any](h *Hub, f func() (T, error)) (*Fiber, *Deferred[T]) {
	d := new(Deferred[T])
	fb := h.start(
		func() (any, error) {
			v, err := f()
			return v, err
		},
		func(fb *Fiber) {
			v, err := fb.Result()
			if err != nil {
				if pe, ok := err.(*PropagatedError); ok && pe.Err != nil {
					err = pe.Err
				}
				d.Errback(err)
				return
			}
			t, _ := v.(T)
			d.Callback(t)
		},
	)
	return fb, d
}

func result[T any](v any, err error) (T, error) {
	if err != nil {
		var zero T
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}
