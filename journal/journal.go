// Package journal records the outcome of each finished invocation to a sink
// outside the runtime.
package journal

import (
	"context"
	"errors"
	"time"
)

// Entry summarises one invocation cycle.
type Entry struct {
	RequestID       string
	FunctionName    string
	FunctionVersion string
	TraceID         string
	Success         bool
	ErrorType       string
	ErrorMessage    string
	// Deferred is set when the response waited for background work.
	Deferred   bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration is the time from dispatch to the posted result.
func (e *Entry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// Journal records finished invocations.
type Journal interface {
	Record(ctx context.Context, e *Entry) error
}

// JournalFunc adapts a function to a Journal.
type JournalFunc func(ctx context.Context, e *Entry) error

func (f JournalFunc) Record(ctx context.Context, e *Entry) error { return f(ctx, e) }

// Multi records to every journal and joins their errors.
func Multi(journals ...Journal) Journal {
	return JournalFunc(func(ctx context.Context, e *Entry) error {
		var errs []error
		for _, j := range journals {
			if err := j.Record(ctx, e); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
