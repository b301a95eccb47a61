// Package invocation derives the per-invocation context handed to user code
// from the control reply headers and the process configuration.
package invocation

import (
	"context"
	"encoding/json"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/aura-studio/lambda-runtime/config"
	"github.com/aws/aws-lambda-go/lambdacontext"
)

// Background runs work outside of the handler's own completion. The loop
// supplies one that tracks outstanding work so a response can be held back
// until it drains.
type Background interface {
	Go(fn func())
	AfterFunc(d time.Duration, fn func()) (stop func() bool)
}

// Context is the per-invocation view exposed to a handler.
type Context struct {
	RequestID          string
	Deadline           time.Time
	InvokedFunctionArn string
	TraceID            string

	// ClientContext and Identity are the decoded JSON header values, or nil
	// when the header was missing or not valid JSON.
	ClientContext any
	Identity      any

	FunctionName    string
	FunctionVersion string
	MemoryLimitMB   int
	LogGroupName    string
	LogStreamName   string

	headers    Headers
	deadlineMs int64
	clock      Clock
	background Background
	noWait     atomic.Bool
}

// New builds a Context. It never fails: unparsable optional values are left
// empty. A missing or non-integer deadline is treated as the epoch.
func New(h Headers, cfg *config.RuntimeConfig, clock Clock) *Context {
	if clock == nil {
		clock = SystemClock
	}
	deadlineMs, err := strconv.ParseInt(h.DeadlineMs, 10, 64)
	if err != nil {
		deadlineMs = 0
	}

	c := &Context{
		RequestID:          h.RequestID,
		Deadline:           time.UnixMilli(deadlineMs),
		InvokedFunctionArn: h.InvokedFunctionArn,
		TraceID:            h.TraceID,
		ClientContext:      parseJSON(h.ClientContext),
		Identity:           parseJSON(h.Identity),
		headers:            h,
		deadlineMs:         deadlineMs,
		clock:              clock,
	}
	if cfg != nil {
		c.FunctionName = cfg.FunctionName
		c.FunctionVersion = cfg.FunctionVersion
		c.MemoryLimitMB = cfg.MemorySizeMB
		c.LogGroupName = cfg.LogGroupName
		c.LogStreamName = cfg.LogStreamName
	}
	return c
}

// Factory builds contexts for the loop with a fixed config, clock and
// background tracker.
type Factory struct {
	Config     *config.RuntimeConfig
	Clock      Clock
	Background Background
}

// New builds the context for one invocation.
func (f *Factory) New(h Headers) *Context {
	c := New(h, f.Config, f.Clock)
	c.background = f.Background
	return c
}

// RemainingTimeMillis is deadline minus now, recomputed on every call.
func (c *Context) RemainingTimeMillis() int64 {
	return c.deadlineMs - c.clock.Now().UnixMilli()
}

// RemainingTime is RemainingTimeMillis as a Duration.
func (c *Context) RemainingTime() time.Duration {
	return time.Duration(c.RemainingTimeMillis()) * time.Millisecond
}

// WaitForPendingWork reports whether the response is held back until
// background work has drained. It defaults to true.
func (c *Context) WaitForPendingWork() bool {
	return !c.noWait.Load()
}

// SetWaitForPendingWork chooses whether the result waits for background work.
func (c *Context) SetWaitForPendingWork(wait bool) {
	c.noWait.Store(!wait)
}

// Headers returns the raw headers the context was built from.
func (c *Context) Headers() Headers {
	return c.headers
}

// Go starts fn as background work.
func (c *Context) Go(fn func()) {
	if c.background == nil {
		go fn()
		return
	}
	c.background.Go(fn)
}

// AfterFunc runs fn as background work once d has elapsed. The returned
// function cancels it if it has not started yet.
func (c *Context) AfterFunc(d time.Duration, fn func()) (stop func() bool) {
	if c.background == nil {
		return time.AfterFunc(d, fn).Stop
	}
	return c.background.AfterFunc(d, fn)
}

// LambdaContext returns the aws-lambda-go view of the invocation. Typed
// client context and identity are decoded best effort.
func (c *Context) LambdaContext() *lambdacontext.LambdaContext {
	lc := &lambdacontext.LambdaContext{
		AwsRequestID:       c.RequestID,
		InvokedFunctionArn: c.InvokedFunctionArn,
	}
	if c.ClientContext != nil {
		_ = json.Unmarshal([]byte(c.headers.ClientContext), &lc.ClientContext)
	}
	if c.Identity != nil {
		_ = json.Unmarshal([]byte(c.headers.Identity), &lc.Identity)
	}
	return lc
}

type contextKey struct{}

// Context returns parent carrying both c and its aws-lambda-go view. No
// deadline is attached: remaining time is advisory only.
func (c *Context) Context(parent context.Context) context.Context {
	ctx := lambdacontext.NewContext(parent, c.LambdaContext())
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the invocation stored by Context.Context.
func FromContext(ctx context.Context) (*Context, bool) {
	c, ok := ctx.Value(contextKey{}).(*Context)
	return c, ok
}

func parseJSON(raw string) any {
	if raw == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil
	}
	return v
}
