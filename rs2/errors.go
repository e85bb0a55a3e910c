package rs2

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an SDK failure.
type ErrorKind int

// The failure classes an SDK call can produce.
const (
	// ErrUnknown is a failure the backend could not classify.
	ErrUnknown ErrorKind = iota
	// ErrNoDevice means no device is connected.
	ErrNoDevice
	// ErrNotSupported means the sensor does not support the option or the
	// device cannot satisfy the requested stream profile.
	ErrNotSupported
	// ErrInvalidValue means an option value was out of range.
	ErrInvalidValue
	// ErrWrongState means the call is invalid in the pipeline's current
	// state, e.g. stopping a pipeline that never started.
	ErrWrongState
	// ErrTimeout means a blocking wait gave up.
	ErrTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNoDevice:
		return "no device"
	case ErrNotSupported:
		return "not supported"
	case ErrInvalidValue:
		return "invalid value"
	case ErrWrongState:
		return "wrong state"
	case ErrTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is the explicit failure value returned by every SDK call site.
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("rs2: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("rs2: %s: %s: %s", e.Op, e.Kind, e.Msg)
}

// Errorf builds an *Error with a formatted message.
func Errorf(kind ErrorKind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the ErrorKind from an error, unwrapping as needed,
// otherwise ErrUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrUnknown
}
