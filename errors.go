package twine

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrConnectionClosed is matched by every *ConnectionClosedError.
	ErrConnectionClosed = errors.New("twine: connection closed")

	// ErrTimeout is matched by every *TimeoutError.
	ErrTimeout = errors.New("twine: deadline exceeded")

	// ErrProtocolViolation is matched by errors reporting input that breaks
	// configured framing limits, e.g. *LineTooLongError.
	ErrProtocolViolation = errors.New("twine: protocol violation")

	// ErrHubClosed is delivered to fibers that are suspended when their [Hub]
	// closes, and is the failure of fibers started after that.
	ErrHubClosed = errors.New("twine: hub closed")

	// ErrInterrupted is the default error used by [Fiber.Interrupt] when
	// passed nil.
	ErrInterrupted = errors.New("twine: fiber interrupted")

	// ErrGoexit is the failure of a fiber whose function called
	// runtime.Goexit.
	ErrGoexit = errors.New("twine: fiber called runtime.Goexit")

	// ErrAlreadyCalled is the panic value of firing a [Deferred] twice.
	ErrAlreadyCalled = errors.New("twine: deferred already fired")

	// ErrConcurrentRead is returned when a second fiber reads from a [Conn]
	// that already has a read outstanding.
	ErrConcurrentRead = errors.New("twine: concurrent read on connection")

	// ErrNoTCP is returned by TCP helpers when the hub's reactor does not
	// implement [TCPReactor].
	ErrNoTCP = errors.New("twine: reactor does not support TCP")
)

// ConnectionClosedError is raised into a fiber suspended on a [Conn] when
// the connection is lost, and returned by further operations on it.
// Reason is what the transport reported; nil means a clean close.
type ConnectionClosedError struct {
	Reason error
}

// Error implements the error interface.
func (e *ConnectionClosedError) Error() string {
	if e.Reason == nil {
		return ErrConnectionClosed.Error()
	}
	return ErrConnectionClosed.Error() + ": " + e.Reason.Error()
}

// Is reports whether target is [ErrConnectionClosed].
func (e *ConnectionClosedError) Is(target error) bool { return target == ErrConnectionClosed }

// Unwrap returns e.Reason.
func (e *ConnectionClosedError) Unwrap() error { return e.Reason }

// TimeoutError is the failure of a deadline-wrapped wait whose timer won.
type TimeoutError struct {
	After time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%v after %v", ErrTimeout, e.After)
}

// Is reports whether target is [ErrTimeout].
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// Timeout reports true, so that a TimeoutError satisfies the same
// interface as net.Error timeouts.
func (e *TimeoutError) Timeout() bool { return true }

// PropagatedError wraps the failure an awaited [AsyncResult] fired with.
type PropagatedError struct {
	Err error
}

// Error returns the message of the wrapped error.
func (e *PropagatedError) Error() string { return e.Err.Error() }

// Unwrap returns e.Err.
func (e *PropagatedError) Unwrap() error { return e.Err }

// LineTooLongError reports more than Limit bytes buffered without
// a delimiter.
type LineTooLongError struct {
	Length int
	Limit  int
}

// Error implements the error interface.
func (e *LineTooLongError) Error() string {
	return fmt.Sprintf("twine: line too long (%d bytes buffered, limit %d)", e.Length, e.Limit)
}

// Is reports whether target is [ErrProtocolViolation].
func (e *LineTooLongError) Is(target error) bool { return target == ErrProtocolViolation }

// SchedulingError reports a broken resume invariant: a double resume,
// resuming a fiber that is not suspended, or suspending outside a fiber.
//
// SchedulingErrors are raised with panic. Raised on the driving loop they
// take the process down; raised inside a fiber they end that fiber.
type SchedulingError struct {
	Op    string
	Fiber *Fiber
	Msg   string
}

// Error implements the error interface.
func (e *SchedulingError) Error() string {
	if e.Fiber != nil {
		return fmt.Sprintf("twine: %s: fiber %v: %s", e.Op, e.Fiber.id, e.Msg)
	}
	return fmt.Sprintf("twine: %s: %s", e.Op, e.Msg)
}
