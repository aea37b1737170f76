package twine

import "github.com/google/uuid"

// State is the lifecycle state of a [Fiber].
type State uint8

const (
	StateReady State = iota
	StateRunning
	StateSuspended
	StateDone
)

// String returns the lower-case name of s.
func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateDone:
		return "done"
	default:
		return "invalid"
	}
}

// A Fiber is an execution of code that can suspend and later resume
// exactly where it left off.
//
// Each fiber owns a goroutine, but the goroutine only runs while its
// driving context is blocked handing control to it, so fibers of a [Hub]
// never run in parallel with each other or with the loop.
type Fiber struct {
	hub     *Hub
	id      uuid.UUID
	state   State
	in      chan outcome
	out     chan struct{}
	pending *Pending
	value   any
	err     error
	observe func(fb *Fiber)
}

type outcome struct {
	value any
	err   error
}

func newFiber(h *Hub, observe func(fb *Fiber)) *Fiber {
	return &Fiber{
		hub:     h,
		id:      uuid.New(),
		state:   StateReady,
		in:      make(chan outcome),
		out:     make(chan struct{}),
		observe: observe,
	}
}

func (fb *Fiber) main(f func() (any, error)) {
	<-fb.in
	catch(f, func(v any, err error) {
		fb.value, fb.err = v, err
		fb.state = StateDone
		fb.out <- struct{}{}
	})
}

// ID returns the unique identity of fb.
func (fb *Fiber) ID() uuid.UUID { return fb.id }

// Hub returns the hub that runs fb.
func (fb *Fiber) Hub() *Hub { return fb.hub }

// State returns the lifecycle state of fb.
func (fb *Fiber) State() State { return fb.state }

// Done reports whether fb has ended.
func (fb *Fiber) Done() bool { return fb.state == StateDone }

// Result returns what the function of fb returned. It is only meaningful
// once fb is done.
func (fb *Fiber) Result() (any, error) { return fb.value, fb.err }

// Interrupt resumes fb with err if fb is suspended and the operation it
// waits on has not completed yet. The registrations racing for that
// operation are canceled. A nil err means [ErrInterrupted].
//
// Interrupt reports whether fb was interrupted.
func (fb *Fiber) Interrupt(err error) bool {
	p := fb.pending
	if fb.state != StateSuspended || p == nil {
		return false
	}
	if err == nil {
		err = ErrInterrupted
	}
	return p.Resume(nil, err)
}

// Pending is the one outstanding wait of a suspended [Fiber].
//
// A Pending settles exactly once. Whichever registration calls Resume
// first wins; later calls do nothing, so several event sources may race
// for the same Pending without risking a double resume.
type Pending struct {
	fiber       *Fiber
	reg         func(p *Pending)
	registering bool
	settled     bool
	hooks       []func()
}

func (p *Pending) register() {
	reg := p.reg
	p.reg = nil
	if reg == nil {
		return
	}
	p.registering = true
	defer func() { p.registering = false }()
	reg(p)
}

// Fiber returns the fiber waiting on p.
func (p *Pending) Fiber() *Fiber { return p.fiber }

// Settled reports whether p has been resumed.
func (p *Pending) Settled() bool { return p.settled }

// OnSettle adds f to be called when p settles, before the fiber resumes.
// Registrations use it to cancel whatever else was racing for p.
// If p has already settled, f is called immediately.
func (p *Pending) OnSettle(f func()) {
	if p.settled {
		f()
		return
	}
	p.hooks = append(p.hooks, f)
}

// Resume settles p and resumes its fiber with v and err.
// It reports false, and does nothing, if p has already settled.
//
// Called while the registration function passed to [Hub.Suspend] is
// still running, Resume defers the switch to a later loop tick, so a
// fiber is never re-entered from its own registration.
func (p *Pending) Resume(v any, err error) bool {
	if p.settled {
		return false
	}
	p.settled = true

	hooks := p.hooks
	p.hooks = nil
	for _, f := range hooks {
		f()
	}

	h := p.fiber.hub
	o := outcome{v, err}

	if p.registering {
		h.reactor.CallLater(0, func() { h.deliver(p, o) })
		return true
	}

	h.deliver(p, o)
	return true
}
