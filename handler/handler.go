// Package handler defines the contract between the runtime and function code,
// and the adapter that turns a handler's callback or returned future into a
// single outcome.
package handler

import (
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/aura-studio/lambda-runtime/invocation"
)

// Outcome is the single result of one invocation.
type Outcome struct {
	Value any
	Err   error
}

// Success is a completed invocation with result v.
func Success(v any) Outcome { return Outcome{Value: v} }

// Failure is a failed invocation.
func Failure(err error) Outcome { return Outcome{Err: err} }

// Failed reports whether the invocation failed.
func (o Outcome) Failed() bool { return o.Err != nil }

// Callback completes an invocation. A non-nil err fails it, otherwise value
// is the result.
type Callback func(err error, value any)

// Future delivers an outcome asynchronously. A future closed without a value
// resolves to nil.
type Future <-chan Outcome

// Handler is user function code. It may complete through cb, through the
// returned Future, or both; the first completion wins. Returning nil means
// only cb will be used.
type Handler interface {
	Handle(event json.RawMessage, c *invocation.Context, cb Callback) Future
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(event json.RawMessage, c *invocation.Context, cb Callback) Future

func (f HandlerFunc) Handle(event json.RawMessage, c *invocation.Context, cb Callback) Future {
	return f(event, c, cb)
}

// Resolved is a future already completed with v.
func Resolved(v any) Future {
	ch := make(chan Outcome, 1)
	ch <- Success(v)
	close(ch)
	return ch
}

// Rejected is a future already failed with err.
func Rejected(err error) Future {
	ch := make(chan Outcome, 1)
	ch <- Failure(err)
	close(ch)
	return ch
}

// Async runs fn on its own goroutine and delivers its result. A panic in fn
// becomes a *PanicError failure.
func Async(fn func() (any, error)) Future {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		defer func() {
			if r := recover(); r != nil {
				ch <- Failure(newPanicError(r))
			}
		}()
		v, err := fn()
		if err != nil {
			ch <- Failure(err)
			return
		}
		ch <- Success(v)
	}()
	return ch
}

// PanicError is a panic raised by handler code.
type PanicError struct {
	Value any
	Stack []byte
}

func newPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}
