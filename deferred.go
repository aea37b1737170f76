package twine

// AsyncResult is a one-shot asynchronous result that fires either
// callback with a value or errback with a failure, exactly once.
//
// If the result has already fired, AddCallbacks calls the matching
// function immediately. Either function may be nil.
type AsyncResult[T any] interface {
	AddCallbacks(callback func(T), errback func(error))
}

// Deferred is the bundled [AsyncResult] implementation.
//
// The zero value is an unfired Deferred ready for use.
// A Deferred must only be used on its reactor's loop and by fibers.
type Deferred[T any] struct {
	fired     bool
	value     T
	err       error
	callbacks []callbackPair[T]
}

type callbackPair[T any] struct {
	callback func(T)
	errback  func(error)
}

// Succeed returns a [Deferred] that has already fired with v.
func Succeed[T any](v T) *Deferred[T] {
	d := new(Deferred[T])
	d.Callback(v)
	return d
}

// Fail returns a [Deferred] that has already failed with err.
func Fail[T any](err error) *Deferred[T] {
	d := new(Deferred[T])
	d.Errback(err)
	return d
}

// AddCallbacks implements [AsyncResult].
func (d *Deferred[T]) AddCallbacks(callback func(T), errback func(error)) {
	if d.fired {
		d.run(callbackPair[T]{callback, errback})
		return
	}
	d.callbacks = append(d.callbacks, callbackPair[T]{callback, errback})
}

// Callback fires d with v. It panics with [ErrAlreadyCalled] if d has
// already fired.
func (d *Deferred[T]) Callback(v T) {
	d.fire(v, nil)
}

// Errback fires d with err. It panics with [ErrAlreadyCalled] if d has
// already fired, or if err is nil.
func (d *Deferred[T]) Errback(err error) {
	if err == nil {
		panic("twine: Errback(nil)")
	}
	var zero T
	d.fire(zero, err)
}

func (d *Deferred[T]) fire(v T, err error) {
	if d.fired {
		panic(ErrAlreadyCalled)
	}
	d.fired = true
	d.value, d.err = v, err

	for len(d.callbacks) != 0 {
		c := d.callbacks[0]
		d.callbacks[0] = callbackPair[T]{}
		d.callbacks = d.callbacks[1:]
		d.run(c)
	}
	d.callbacks = nil
}

func (d *Deferred[T]) run(c callbackPair[T]) {
	if d.err != nil {
		if c.errback != nil {
			c.errback(d.err)
		}
		return
	}
	if c.callback != nil {
		c.callback(d.value)
	}
}

// Fired reports whether d has fired.
func (d *Deferred[T]) Fired() bool { return d.fired }

// Result returns the outcome of d and whether d has fired.
func (d *Deferred[T]) Result() (v T, err error, ok bool) {
	return d.value, d.err, d.fired
}
