// Package invoke runs the invocation loop: fetch an event from the control
// API, dispatch it to the handler and post the outcome back, forever.
package invoke

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/aura-studio/lambda-runtime/config"
	"github.com/aura-studio/lambda-runtime/handler"
	"github.com/aura-studio/lambda-runtime/invocation"
	"github.com/aura-studio/lambda-runtime/journal"
	"github.com/aura-studio/lambda-runtime/rapi"
	"github.com/aura-studio/lambda-runtime/scheduler"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"go.uber.org/zap"
)

// ControlAPI is the control plane the loop talks to.
type ControlAPI interface {
	FetchNext(ctx context.Context) (*rapi.Response, error)
	SendSuccess(ctx context.Context, requestID string, value any) (*rapi.Response, error)
	SendError(ctx context.Context, requestID string, err error) (*rapi.Response, error)
	SendInitError(ctx context.Context, err error) (*rapi.Response, error)
}

// State is the position of the loop within a cycle.
type State int32

const (
	Idle State = iota
	Fetching
	Dispatching
	Completing
	Fatal
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Dispatching:
		return "dispatching"
	case Completing:
		return "completing"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Engine is the invocation loop for one handler.
type Engine struct {
	*Options
	api       ControlAPI
	handler   handler.Handler
	cfg       *config.RuntimeConfig
	factory   *invocation.Factory
	scheduler *scheduler.Scheduler
	logger    *zap.SugaredLogger
	state     atomic.Int32
	running   atomic.Int32
}

// NewEngine returns a running Engine that dispatches events from api to h.
func NewEngine(api ControlAPI, h handler.Handler, cfg *config.RuntimeConfig, opts ...Option) *Engine {
	if cfg == nil {
		cfg = &config.RuntimeConfig{}
	}
	options := NewOptions(opts...)
	e := &Engine{
		Options:   options,
		api:       api,
		handler:   h,
		cfg:       cfg,
		scheduler: scheduler.New(options.Tracker),
		logger:    options.Logger.Named("invoke"),
		factory: &invocation.Factory{
			Config:     cfg,
			Clock:      options.Clock,
			Background: options.Tracker,
		},
	}
	e.running.Store(1)
	return e
}

// Start lets a stopped engine run again.
func (e *Engine) Start() {
	e.running.Store(1)
}

// Stop makes Run return ErrStopped once the current cycle is finished.
func (e *Engine) Stop() {
	e.running.Store(0)
}

// IsRunning reports whether Stop has not been called.
func (e *Engine) IsRunning() bool {
	return e.running.Load() == 1
}

// State returns the current loop state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

// Run processes invocations until a fatal error, ctx ends or the engine is
// stopped. It never returns nil.
func (e *Engine) Run(ctx context.Context) error {
	e.publishFunction()
	for {
		e.setState(Idle)
		if !e.IsRunning() {
			return ErrStopped
		}
		if err := ctx.Err(); err != nil {
			return e.fail(err)
		}
		if err := e.cycle(ctx); err != nil {
			return e.fail(err)
		}
	}
}

func (e *Engine) fail(err error) error {
	e.setState(Fatal)
	e.logger.Errorf("invocation loop stopped: %v", err)
	return err
}

// publishFunction exposes the function settings to code using the
// aws-lambda-go lambdacontext package.
func (e *Engine) publishFunction() {
	lambdacontext.FunctionName = e.cfg.FunctionName
	lambdacontext.FunctionVersion = e.cfg.FunctionVersion
	lambdacontext.MemoryLimitInMB = e.cfg.MemorySizeMB
	lambdacontext.LogGroupName = e.cfg.LogGroupName
	lambdacontext.LogStreamName = e.cfg.LogStreamName
}

func (e *Engine) cycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &DispatchPanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	e.scheduler.Reset()
	e.setState(Fetching)
	resp, err := e.api.FetchNext(ctx)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		e.logger.Warnf("expected response with status 200, but received %d. retrying", resp.StatusCode)
		return nil
	}

	headers := invocation.HeadersFrom(resp.Headers)
	var event json.RawMessage
	if err := json.Unmarshal(resp.Body, &event); err != nil {
		return &MalformedEventError{RequestID: headers.RequestID, Err: err}
	}
	e.TraceSlot.Set(headers.TraceID)

	e.setState(Dispatching)
	c := e.factory.New(headers)
	started := e.Clock.Now()
	if e.DebugMode {
		e.logger.Infof("request %s: %s", c.RequestID, event)
	}
	out, err := handler.Call(ctx, e.handler, event, c, e.logger)
	if err != nil {
		return err
	}

	e.setState(Completing)
	deferred := c.WaitForPendingWork() && e.scheduler.Tracker().Pending() > 0
	err = e.scheduler.Schedule(ctx, c, func() error {
		var sendErr error
		out, sendErr = e.respond(ctx, c.RequestID, out)
		return sendErr
	})
	if err != nil {
		return err
	}
	if e.DebugMode {
		e.debugOutcome(c.RequestID, out)
	}
	e.record(ctx, c, out, started, deferred)
	return nil
}

// respond posts the outcome and returns what was actually reported: a
// success value that cannot be encoded is sent as a failure instead.
func (e *Engine) respond(ctx context.Context, requestID string, out handler.Outcome) (handler.Outcome, error) {
	var (
		resp *rapi.Response
		err  error
	)
	if out.Failed() {
		resp, err = e.api.SendError(ctx, requestID, out.Err)
	} else {
		resp, err = e.api.SendSuccess(ctx, requestID, out.Value)
		var encodeErr *rapi.EncodeError
		if errors.As(err, &encodeErr) {
			e.logger.Warnf("response for %s is not serialisable: %v", requestID, encodeErr.Err)
			out = handler.Failure(encodeErr)
			resp, err = e.api.SendError(ctx, requestID, encodeErr)
		}
	}
	if err != nil {
		return out, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e.logger.Warnf("control api answered %d to the result of %s", resp.StatusCode, requestID)
	}
	return out, nil
}

func (e *Engine) debugOutcome(requestID string, out handler.Outcome) {
	if out.Failed() {
		e.logger.Infof("error %s: %s: %v", requestID, rapi.ErrorType(out.Err), out.Err)
		return
	}
	e.logger.Infof("response %s: %v", requestID, out.Value)
}

func (e *Engine) record(ctx context.Context, c *invocation.Context, out handler.Outcome, started time.Time, deferred bool) {
	if e.Journal == nil {
		return
	}
	entry := &journal.Entry{
		RequestID:       c.RequestID,
		FunctionName:    c.FunctionName,
		FunctionVersion: c.FunctionVersion,
		TraceID:         c.TraceID,
		Success:         !out.Failed(),
		Deferred:        deferred,
		StartedAt:       started,
		FinishedAt:      e.Clock.Now(),
	}
	if out.Failed() {
		entry.ErrorType = rapi.ErrorType(out.Err)
		entry.ErrorMessage = out.Err.Error()
	}
	if err := e.Journal.Record(ctx, entry); err != nil {
		e.logger.Warnf("journal %s: %v", c.RequestID, err)
	}
}
