package twine

import (
	"log/slog"
	"maps"
	"slices"
)

// A Hub runs fibers on behalf of one [Reactor].
//
// The hub is where suspension meets the driving loop: a fiber that
// suspends hands control back to whoever resumed or started it, and the
// loop later resumes the fiber from one of its callbacks.
// Exactly one of {the loop, one fiber} executes at any instant.
//
// A Hub must only be used from its reactor's loop and from the fibers it
// runs. It is not safe for use by other goroutines.
type Hub struct {
	reactor Reactor
	config  Config
	logger  *slog.Logger
	current *Fiber
	fibers  map[*Fiber]struct{}
	closed  bool
}

// NewHub creates a [Hub] driven by r.
func NewHub(r Reactor, opts ...Option) *Hub {
	h := &Hub{
		reactor: r,
		config:  DefaultConfig(),
		logger:  slog.Default(),
		fibers:  make(map[*Fiber]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Reactor returns the reactor h was created with.
func (h *Hub) Reactor() Reactor { return h.reactor }

// Config returns the connection limits of h.
func (h *Hub) Config() Config { return h.config }

// Logger returns the logger of h.
func (h *Hub) Logger() *slog.Logger { return h.logger }

// Current returns the fiber that is running, or nil when called from the
// driving loop.
func (h *Hub) Current() *Fiber { return h.current }

// Run creates a fiber executing f and runs it, synchronously on the
// calling context, up to its first suspension point.
//
// Nobody observes the outcome of f, so a failure is logged when the fiber
// ends. Use [Spawn] to observe it.
func (h *Hub) Run(f func() error) *Fiber {
	return h.start(func() (any, error) { return nil, f() }, nil)
}

func (h *Hub) start(f func() (any, error), observe func(fb *Fiber)) *Fiber {
	fb := newFiber(h, observe)

	if h.closed {
		fb.state = StateDone
		fb.err = ErrHubClosed
		h.finish(fb)
		return fb
	}

	h.fibers[fb] = struct{}{}

	go fb.main(f)

	h.enter(fb, outcome{})

	return fb
}

// enter switches to fb and blocks until fb suspends or ends.
func (h *Hub) enter(fb *Fiber, o outcome) {
	prev := h.current
	h.current = fb
	fb.state = StateRunning
	fb.in <- o
	<-fb.out
	h.current = prev

	switch fb.state {
	case StateSuspended:
		fb.pending.register()
	case StateDone:
		h.finish(fb)
	}
}

func (h *Hub) finish(fb *Fiber) {
	delete(h.fibers, fb)

	if observe := fb.observe; observe != nil {
		fb.observe = nil
		observe(fb)
		return
	}

	if fb.err != nil {
		h.logger.Error("twine: unobserved fiber failure", "fiber", fb.id, "error", fb.err)
	}
}

// Suspend parks the running fiber until it is resumed.
//
// register is called, on the driving context, once the fiber has
// yielded. It receives the [Pending] through which the fiber is to be
// resumed and should hand it to whatever will eventually complete.
// Suspend returns the value and error passed to that resume.
//
// Suspend panics with a *SchedulingError when called from outside
// a fiber of h.
func (h *Hub) Suspend(register func(p *Pending)) (any, error) {
	fb := h.current
	if fb == nil {
		panic(&SchedulingError{Op: "suspend", Msg: "not called from a fiber"})
	}
	if fb.pending != nil {
		panic(&SchedulingError{Op: "suspend", Fiber: fb, Msg: "fiber already has a pending operation"})
	}

	p := &Pending{fiber: fb, reg: register}
	fb.pending = p
	fb.state = StateSuspended
	fb.out <- struct{}{}

	o := <-fb.in
	return o.value, o.err
}

// Resume re-enters fb, which must be suspended, making its call to
// [Hub.Suspend] return v and err.
//
// Resume must be called from the driving context. Resuming a fiber that
// is running or done, or one that has already been resumed, panics with
// a *SchedulingError.
func (h *Hub) Resume(fb *Fiber, v any, err error) {
	if fb.hub != h {
		panic(&SchedulingError{Op: "resume", Fiber: fb, Msg: "fiber belongs to another hub"})
	}
	p := fb.pending
	if fb.state != StateSuspended || p == nil {
		panic(&SchedulingError{Op: "resume", Fiber: fb, Msg: "fiber is " + fb.state.String()})
	}
	if !p.Resume(v, err) {
		panic(&SchedulingError{Op: "resume", Fiber: fb, Msg: "fiber has already been resumed"})
	}
}

func (h *Hub) deliver(p *Pending, o outcome) {
	fb := p.fiber
	if fb.state != StateSuspended || fb.pending != p {
		panic(&SchedulingError{Op: "resume", Fiber: fb, Msg: "fiber is " + fb.state.String()})
	}
	fb.pending = nil
	h.enter(fb, o)
}

// Close interrupts every suspended fiber of h with [ErrHubClosed].
// Fibers started after Close fail immediately with ErrHubClosed.
func (h *Hub) Close() {
	if h.closed {
		return
	}
	h.closed = true

	for _, fb := range slices.Collect(maps.Keys(h.fibers)) {
		fb.Interrupt(ErrHubClosed)
	}
}

// Len returns the number of fibers of h that have not ended.
func (h *Hub) Len() int { return len(h.fibers) }
