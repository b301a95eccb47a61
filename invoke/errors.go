package invoke

import (
	"errors"
	"fmt"
)

// ErrStopped is returned by Run after Stop.
var ErrStopped = errors.New("invoke: engine stopped")

// MalformedEventError reports an event body that is not JSON. It ends the
// loop.
type MalformedEventError struct {
	RequestID string
	Err       error
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("invoke: malformed event for %s: %v", e.RequestID, e.Err)
}

func (e *MalformedEventError) Unwrap() error { return e.Err }

// DispatchPanicError is a panic raised by the loop machinery itself rather
// than by handler code.
type DispatchPanicError struct {
	Value any
	Stack []byte
}

func (e *DispatchPanicError) Error() string {
	return fmt.Sprintf("invoke: panic: %v", e.Value)
}
