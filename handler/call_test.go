package handler

import (
	"context"
	"encoding/json"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/aura-studio/lambda-runtime/invocation"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed() (*zap.SugaredLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.WarnLevel)
	return zap.New(core).Sugar(), logs
}

func testContext() *invocation.Context {
	return invocation.New(invocation.Headers{RequestID: "abc", DeadlineMs: "2000"}, nil, invocation.FixedClock(1000))
}

func call(t *testing.T, h Handler, logger *zap.SugaredLogger) Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	out, err := Call(ctx, h, json.RawMessage(`{"foo":"bar"}`), testContext(), logger)
	require.NoError(t, err)
	return out
}

func TestCallCallbackSuccess(t *testing.T) {
	h := HandlerFunc(func(event json.RawMessage, c *invocation.Context, cb Callback) Future {
		cb(nil, map[string]any{"event": event, "id": c.RequestID})
		return nil
	})
	out := call(t, h, zap.NewNop().Sugar())
	require.False(t, out.Failed())
	assert.Equal(t, map[string]any{"event": json.RawMessage(`{"foo":"bar"}`), "id": "abc"}, out.Value)
}

func TestCallCallbackFailure(t *testing.T) {
	boom := errors.New("boom")
	h := HandlerFunc(func(json.RawMessage, *invocation.Context, Callback) Future {
		return Rejected(boom)
	})
	out := call(t, h, zap.NewNop().Sugar())
	require.True(t, out.Failed())
	assert.ErrorIs(t, out.Err, boom)
}

func TestCallFutureClosedWithoutValue(t *testing.T) {
	h := HandlerFunc(func(json.RawMessage, *invocation.Context, Callback) Future {
		ch := make(chan Outcome)
		close(ch)
		return ch
	})
	out := call(t, h, zap.NewNop().Sugar())
	assert.False(t, out.Failed())
	assert.Nil(t, out.Value)
}

func TestCallCallbackThenFuture(t *testing.T) {
	logger, logs := observed()
	h := HandlerFunc(func(_ json.RawMessage, _ *invocation.Context, cb Callback) Future {
		cb(nil, "first")
		return Resolved("second")
	})
	out := call(t, h, logger)
	assert.Equal(t, "first", out.Value)
	require.Eventually(t, func() bool {
		return logs.FilterMessage("resolve has been already called").Len() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestCallAbandonsSilentFutureAfterCallback(t *testing.T) {
	h := HandlerFunc(func(_ json.RawMessage, _ *invocation.Context, cb Callback) Future {
		cb(nil, "done")
		return make(chan Outcome)
	})

	before := runtime.NumGoroutine()
	for i := 0; i < 50; i++ {
		out, err := Call(context.Background(), h, json.RawMessage(`{}`), testContext(), zap.NewNop().Sugar())
		require.NoError(t, err)
		require.Equal(t, "done", out.Value)
	}
	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() < before+10
	}, time.Second, 10*time.Millisecond)
}

func TestCallRejectThenResolve(t *testing.T) {
	logger, logs := observed()
	boom := errors.New("boom")
	h := HandlerFunc(func(_ json.RawMessage, _ *invocation.Context, cb Callback) Future {
		cb(boom, nil)
		cb(nil, "late")
		cb(errors.New("again"), nil)
		return nil
	})
	out := call(t, h, logger)
	assert.ErrorIs(t, out.Err, boom)
	assert.Equal(t, 1, logs.FilterMessage("calling resolve, but reject has been already called").Len())
	assert.Equal(t, 1, logs.FilterMessage("reject has been already called").Len())
}

func TestCallSynchronousPanic(t *testing.T) {
	h := HandlerFunc(func(json.RawMessage, *invocation.Context, Callback) Future {
		panic("kaboom")
	})
	out := call(t, h, zap.NewNop().Sugar())
	require.True(t, out.Failed())
	var pe *PanicError
	require.ErrorAs(t, out.Err, &pe)
	assert.Equal(t, "kaboom", pe.Value)
	assert.Equal(t, "panic: kaboom", out.Err.Error())
	assert.NotEmpty(t, pe.Stack)
}

func TestCallPanicAfterCallback(t *testing.T) {
	logger, logs := observed()
	h := HandlerFunc(func(_ json.RawMessage, _ *invocation.Context, cb Callback) Future {
		cb(nil, 1)
		panic("after")
	})
	out := call(t, h, logger)
	assert.Equal(t, 1, out.Value)
	assert.Equal(t, 1, logs.FilterMessage("calling reject, but resolve has been already called").Len())
}

func TestCallAsyncPanic(t *testing.T) {
	h := HandlerFunc(func(json.RawMessage, *invocation.Context, Callback) Future {
		return Async(func() (any, error) { panic(errors.New("deep")) })
	})
	out := call(t, h, zap.NewNop().Sugar())
	var pe *PanicError
	require.ErrorAs(t, out.Err, &pe)
	assert.EqualError(t, errors.Unwrap(out.Err), "deep")
}

func TestCallContextCancelled(t *testing.T) {
	h := HandlerFunc(func(json.RawMessage, *invocation.Context, Callback) Future {
		return nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Call(ctx, h, json.RawMessage(`{}`), testContext(), zap.NewNop().Sugar())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCallSingleOutcomeProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(42)

	properties := gopter.NewProperties(parameters)

	properties.Property("first completion wins and every later one warns", prop.ForAll(
		func(seq []bool) bool {
			logger, logs := observed()
			h := HandlerFunc(func(_ json.RawMessage, _ *invocation.Context, cb Callback) Future {
				for i, ok := range seq {
					if ok {
						cb(nil, i)
					} else {
						cb(errors.New("fail"), nil)
					}
				}
				return nil
			})
			out, err := Call(context.Background(), h, json.RawMessage(`{}`), testContext(), logger)
			if err != nil {
				return false
			}
			if seq[0] {
				if out.Failed() || out.Value != 0 {
					return false
				}
			} else if !out.Failed() {
				return false
			}
			return logs.Len() == len(seq)-1
		},
		gen.SliceOfN(8, gen.Bool()).SuchThat(func(s []bool) bool { return len(s) > 0 }),
	))

	properties.TestingRun(t)
}
