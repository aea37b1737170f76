package twine

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// PanicError is the failure of a fiber whose function panicked.
// Value is what was passed to panic; Stack is where it happened.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "twine: fiber panicked: %v", e.Value)
	if e.Stack != nil {
		b.WriteString("\n\n")
		b.Write(e.Stack)
	}
	return b.String()
}

// Unwrap returns the panic value if it is an error, so that, for example,
// a *SchedulingError raised inside a fiber can still be found with
// errors.As.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// catch calls f and reports how it left: normally, by panic (err is a
// *PanicError), or by runtime.Goexit (err is ErrGoexit). The deferred
// function also runs when f calls runtime.Goexit, so the goroutine running
// catch must do its hand-off in done rather than after catch returns.
func catch(f func() (any, error), done func(v any, err error)) {
	var (
		v   any
		err error
		ok  bool
	)
	defer func() {
		if !ok {
			if p := recover(); p != nil {
				err = &PanicError{Value: p, Stack: debug.Stack()}
			} else {
				err = ErrGoexit
			}
			v = nil
		}
		done(v, err)
	}()
	v, err = f()
	ok = true
}
