package handler

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/aura-studio/lambda-runtime/invocation"
	"go.uber.org/zap"
)

const (
	pending int32 = iota
	resolved
	rejected
)

// cell holds the first completion. Later writes are dropped with a warning.
type cell struct {
	state  atomic.Int32
	out    Outcome
	done   chan struct{}
	logger *zap.SugaredLogger
}

func newCell(logger *zap.SugaredLogger) *cell {
	return &cell{done: make(chan struct{}), logger: logger}
}

func (c *cell) resolve(v any) {
	if c.state.CompareAndSwap(pending, resolved) {
		c.out = Success(v)
		close(c.done)
		return
	}
	if c.state.Load() == resolved {
		c.logger.Warn("resolve has been already called")
	} else {
		c.logger.Warn("calling resolve, but reject has been already called")
	}
}

func (c *cell) reject(err error) {
	if c.state.CompareAndSwap(pending, rejected) {
		c.out = Failure(err)
		close(c.done)
		return
	}
	if c.state.Load() == rejected {
		c.logger.Warn("reject has been already called")
	} else {
		c.logger.Warn("calling reject, but resolve has been already called")
	}
}

func (c *cell) settle(o Outcome) {
	if o.Err != nil {
		c.reject(o.Err)
		return
	}
	c.resolve(o.Value)
}

func (c *cell) deliver(o Outcome, ok bool) {
	if !ok {
		c.resolve(nil)
		return
	}
	c.settle(o)
}

// Call runs h for one event and waits for its first completion. Handler
// failures, including panics during Handle, are reported in the Outcome. The
// error is non-nil only when ctx ends before the handler completes.
func Call(ctx context.Context, h Handler, event json.RawMessage, c *invocation.Context, logger *zap.SugaredLogger) (Outcome, error) {
	if logger == nil {
		logger = zap.S()
	}
	result := newCell(logger)

	cb := func(err error, value any) {
		if err != nil {
			result.reject(err)
			return
		}
		result.resolve(value)
	}

	future := handle(h, event, c, cb, result)
	if future != nil {
		go func() {
			select {
			case o, ok := <-future:
				result.deliver(o, ok)
			case <-result.done:
				// Settled through cb. Only a future that is already ready
				// is still seen; one that never fires is abandoned.
				select {
				case o, ok := <-future:
					result.deliver(o, ok)
				default:
				}
			case <-ctx.Done():
			}
		}()
	}

	select {
	case <-result.done:
		return result.out, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func handle(h Handler, event json.RawMessage, c *invocation.Context, cb Callback, result *cell) (future Future) {
	defer func() {
		if r := recover(); r != nil {
			result.reject(newPanicError(r))
			future = nil
		}
	}()
	return h.Handle(event, c, cb)
}
