package twine

import "slices"

// Signal is an event that fibers can wait on.
//
// Calling the Notify method of a Signal resumes every fiber that is
// waiting on it, in the order they started waiting.
//
// The zero value is ready for use. A Signal must not be shared by more
// than one [Hub].
type Signal struct {
	waiters []*Pending
}

// Wait suspends the running fiber of h until s notifies.
// It returns the error the fiber was interrupted with, if any.
func (s *Signal) Wait(h *Hub) error {
	_, err := h.Suspend(func(p *Pending) {
		s.waiters = append(s.waiters, p)
		p.OnSettle(func() { s.removeWaiter(p) })
	})
	return err
}

func (s *Signal) removeWaiter(p *Pending) {
	if i := slices.Index(s.waiters, p); i != -1 {
		s.waiters = slices.Delete(s.waiters, i, i+1)
	}
}

// Notify resumes every fiber that is waiting on s.
// Fibers that start waiting while Notify runs are left for the next one.
func (s *Signal) Notify() {
	waiters := s.waiters
	s.waiters = nil
	for _, p := range waiters {
		p.Resume(nil, nil)
	}
}

// Len returns the number of fibers waiting on s.
func (s *Signal) Len() int { return len(s.waiters) }
