package twine

// A WaitGroup is a [Signal] with a counter.
//
// Calling the Add or Done method of a WaitGroup updates the counter and,
// when the counter becomes zero, resumes any fiber that is waiting on the
// WaitGroup.
//
// A WaitGroup must not be shared by more than one [Hub].
type WaitGroup struct {
	Signal
	n int
}

// Add adds delta, which may be negative, to the [WaitGroup] counter.
// If the [WaitGroup] counter becomes zero, Add resumes any fiber that is
// waiting on wg.
// If the [WaitGroup] counter is negative, Add panics.
func (wg *WaitGroup) Add(delta int) {
	if wg.n >= 0 {
		wg.n += delta
	}
	if wg.n < 0 {
		panic("twine(WaitGroup): negative counter")
	}
	if wg.n == 0 && delta != 0 {
		wg.Notify()
	}
}

// Done decrements the [WaitGroup] counter by one.
func (wg *WaitGroup) Done() {
	wg.Add(-1)
}

// Count returns the [WaitGroup] counter.
func (wg *WaitGroup) Count() int { return wg.n }

// Wait suspends the running fiber of h until the [WaitGroup] counter
// becomes zero. It returns immediately if the counter is already zero.
func (wg *WaitGroup) Wait(h *Hub) error {
	for wg.n != 0 {
		if err := wg.Signal.Wait(h); err != nil {
			return err
		}
	}
	return nil
}
