package twine

import "slices"

// Semaphore provides a way to bound access to a resource by fibers.
// The callers can request access with a given weight.
//
// Waiters are served in FIFO order: a large request at the head of the
// queue holds back smaller ones behind it.
//
// A Semaphore must not be shared by more than one [Hub].
type Semaphore struct {
	size    int64
	cur     int64
	waiters []*waiter
}

// NewSemaphore creates a new weighted semaphore with the given maximum
// combined weight.
func NewSemaphore(n int64) *Semaphore {
	return &Semaphore{size: n}
}

// Acquire suspends the running fiber of h until a weight of n is
// acquired from the semaphore.
//
// If the fiber is interrupted while waiting, nothing is acquired and the
// interrupting error is returned.
// A request larger than the semaphore can never succeed; it waits until
// interrupted.
func (s *Semaphore) Acquire(h *Hub, n int64) error {
	if n < 0 {
		panic("twine(Semaphore): negative weight")
	}
	if s.size-s.cur >= n && len(s.waiters) == 0 {
		s.cur += n
		return nil
	}
	_, err := h.Suspend(func(p *Pending) {
		w := &waiter{p: p, n: n}
		s.waiters = append(s.waiters, w)
		p.OnSettle(func() {
			if !w.granted {
				s.removeWaiter(w)
			}
		})
	})
	return err
}

// TryAcquire acquires the semaphore with a weight of n without
// suspending. It reports whether it succeeded.
func (s *Semaphore) TryAcquire(n int64) bool {
	if n < 0 {
		panic("twine(Semaphore): negative weight")
	}
	if s.size-s.cur >= n && len(s.waiters) == 0 {
		s.cur += n
		return true
	}
	return false
}

// Release releases the semaphore with a weight of n.
func (s *Semaphore) Release(n int64) {
	if n < 0 {
		panic("twine(Semaphore): negative weight")
	}
	if s.cur >= 0 {
		s.cur -= n
	}
	if s.cur < 0 {
		panic("twine(Semaphore): released more than held")
	}
	s.notifyWaiters()
}

func (s *Semaphore) notifyWaiters() {
	for len(s.waiters) != 0 {
		w := s.waiters[0]
		if s.size-s.cur < w.n {
			break
		}
		s.cur += w.n
		w.granted = true
		s.waiters = slices.Delete(s.waiters, 0, 1)
		w.p.Resume(nil, nil)
	}
}

type waiter struct {
	p       *Pending
	n       int64
	granted bool
}

func (s *Semaphore) removeWaiter(w *waiter) {
	if i := slices.Index(s.waiters, w); i != -1 {
		s.waiters = slices.Delete(s.waiters, i, i+1)
	}
	s.notifyWaiters()
}
