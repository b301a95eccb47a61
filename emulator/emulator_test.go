package emulator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aura-studio/lambda-runtime/config"
	"github.com/aura-studio/lambda-runtime/handler"
	"github.com/aura-studio/lambda-runtime/invocation"
	"github.com/aura-studio/lambda-runtime/invoke"
	"github.com/aura-studio/lambda-runtime/rapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func freeLocalAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

func waitHTTPReady(t *testing.T, baseURL string, timeout time.Duration) {
	t.Helper()
	client := &http.Client{Timeout: 250 * time.Millisecond}
	require.Eventually(t, func() bool {
		resp, err := client.Get(baseURL + "/health-check")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, timeout, 25*time.Millisecond)
}

// startRuntime runs an engine against the emulator until the test ends.
func startRuntime(t *testing.T, srv *httptest.Server, h handler.Handler) *invoke.Engine {
	t.Helper()
	api := rapi.NewClient(rapi.WithAddress(strings.TrimPrefix(srv.URL, "http://")))
	e := invoke.NewEngine(api, h, &config.RuntimeConfig{FunctionName: "function"},
		invoke.WithLogger(zap.NewNop().Sugar()),
		invoke.WithTraceSlot(invoke.TraceSlotFunc(func(string) {})),
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		srv.CloseClientConnections()
		<-done
	})
	return e
}

func newServer(t *testing.T, opts ...Option) (*Emulator, *httptest.Server) {
	t.Helper()
	em := New(append([]Option{WithLogger(zap.NewNop().Sugar())}, opts...)...)
	srv := httptest.NewServer(em)
	t.Cleanup(srv.Close)
	return em, srv
}

func waitResult(t *testing.T, inv *Invocation) *Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r, err := inv.Wait(ctx)
	require.NoError(t, err)
	return r
}

var echo = handler.HandlerFunc(func(event json.RawMessage, c *invocation.Context, cb handler.Callback) handler.Future {
	cb(nil, map[string]any{"event": event, "requestId": c.RequestID, "arn": c.InvokedFunctionArn})
	return nil
})

func TestEmulatorRoundTrip(t *testing.T) {
	em, srv := newServer(t, WithFunctionArn("arn:test"))
	startRuntime(t, srv, echo)

	inv := em.Enqueue(&Invocation{RequestID: "abc", Event: []byte(`{"foo":"bar"}`)})
	r := waitResult(t, inv)
	require.Nil(t, r.Err)
	assert.JSONEq(t, `{"event":{"foo":"bar"},"requestId":"abc","arn":"arn:test"}`, string(r.Payload))
}

func TestEmulatorReportsHandlerError(t *testing.T) {
	em, srv := newServer(t)
	startRuntime(t, srv, handler.HandlerFunc(func(json.RawMessage, *invocation.Context, handler.Callback) handler.Future {
		return handler.Rejected(errors.New("out of stock"))
	}))

	r := waitResult(t, em.Enqueue(&Invocation{Event: []byte(`{}`)}))
	require.NotNil(t, r.Err)
	assert.Equal(t, "out of stock", r.Err.Message)
	assert.Equal(t, "errorString", r.Err.Type)
}

func TestEmulatorFetchStatusesAreRetried(t *testing.T) {
	em, srv := newServer(t, WithFetchStatuses(http.StatusServiceUnavailable, http.StatusTooManyRequests))
	startRuntime(t, srv, echo)

	r := waitResult(t, em.Enqueue(&Invocation{Event: []byte(`1`)}))
	assert.Nil(t, r.Err)
	assert.GreaterOrEqual(t, em.Fetches(), 3)
}

func TestEmulatorDeadlineFromTimeout(t *testing.T) {
	em, srv := newServer(t, WithTimeout(time.Minute))
	startRuntime(t, srv, handler.HandlerFunc(func(_ json.RawMessage, c *invocation.Context, cb handler.Callback) handler.Future {
		cb(nil, c.RemainingTimeMillis())
		return nil
	}))

	r := waitResult(t, em.Enqueue(&Invocation{Event: []byte(`{}`)}))
	var remaining int64
	require.NoError(t, json.Unmarshal(r.Payload, &remaining))
	assert.Greater(t, remaining, int64(50*time.Second/time.Millisecond))
	assert.LessOrEqual(t, remaining, int64(time.Minute/time.Millisecond))
}

func TestInvokeEndpoint(t *testing.T) {
	_, srv := newServer(t)
	startRuntime(t, srv, handler.HandlerFunc(func(_ json.RawMessage, c *invocation.Context, cb handler.Callback) handler.Future {
		if c.ClientContext == nil {
			cb(errors.New("missing client context"), nil)
			return nil
		}
		cb(nil, c.ClientContext)
		return nil
	}))

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/2015-03-31/functions/function/invocations", strings.NewReader(`{"a":1}`))
	require.NoError(t, err)
	req.Header.Set("X-Amz-Client-Context", base64.StdEncoding.EncodeToString([]byte(`{"custom":{"k":"v"}}`)))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("X-Amz-Function-Error"))
	assert.JSONEq(t, `{"custom":{"k":"v"}}`, string(body))
}

func TestInvokeEndpointFunctionError(t *testing.T) {
	_, srv := newServer(t)
	startRuntime(t, srv, handler.HandlerFunc(func(json.RawMessage, *invocation.Context, handler.Callback) handler.Future {
		panic("kaboom")
	}))

	resp, err := http.Post(srv.URL+"/2015-03-31/functions/function/invocations", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Unhandled", resp.Header.Get("X-Amz-Function-Error"))
	assert.JSONEq(t, `{"errorMessage":"panic: kaboom","errorType":"PanicError"}`, string(body))
}

func TestInvokeEndpointEventAndDryRun(t *testing.T) {
	em, srv := newServer(t)

	for typ, want := range map[string]int{"Event": http.StatusAccepted, "DryRun": http.StatusNoContent} {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/2015-03-31/functions/function/invocations", strings.NewReader(`{}`))
		require.NoError(t, err)
		req.Header.Set("X-Amz-Invocation-Type", typ)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, want, resp.StatusCode, typ)
	}
	assert.Len(t, em.queue, 1)
}

func TestNextInvocationHeaders(t *testing.T) {
	em, srv := newServer(t, WithFunctionArn("arn:test"))
	em.Enqueue(&Invocation{
		RequestID:     "abc",
		TraceID:       "Root=1-trace",
		ClientContext: `{"custom":{"k":"v"}}`,
		Event:         []byte(`{"foo":"bar"}`),
	})

	resp, err := http.Get(srv.URL + "/2018-06-01/runtime/invocation/next")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	h := invocation.HeadersFrom(resp.Header)
	assert.Equal(t, "abc", h.RequestID)
	assert.Equal(t, "Root=1-trace", h.TraceID)
	assert.Equal(t, "arn:test", h.InvokedFunctionArn)
	assert.Equal(t, `{"custom":{"k":"v"}}`, h.ClientContext)
	assert.NotEmpty(t, h.DeadlineMs)
	assert.Empty(t, resp.Header.Get(invocation.HeaderCognitoIdentity))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"foo":"bar"}`, string(body))
}

func TestErrorTypeFromHeader(t *testing.T) {
	em, srv := newServer(t)
	inv := em.Enqueue(&Invocation{RequestID: "abc", Event: []byte(`{}`)})

	next, err := http.Get(srv.URL + "/2018-06-01/runtime/invocation/next")
	require.NoError(t, err)
	next.Body.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/2018-06-01/runtime/invocation/abc/error", strings.NewReader(`{"errorMessage":"boom"}`))
	require.NoError(t, err)
	req.Header.Set(rapi.HeaderFunctionErrorType, "Custom.Failure")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	r := waitResult(t, inv)
	require.NotNil(t, r.Err)
	assert.Equal(t, "boom", r.Err.Message)
	assert.Equal(t, "Custom.Failure", r.Err.Type)
}

func TestUnknownRequestID(t *testing.T) {
	_, srv := newServer(t)
	resp, err := http.Post(srv.URL+"/2018-06-01/runtime/invocation/nope/response", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInitError(t *testing.T) {
	em, srv := newServer(t)
	api := rapi.NewClient(rapi.WithAddress(strings.TrimPrefix(srv.URL, "http://")))

	resp, err := api.SendInitError(context.Background(), &handler.ResolutionError{Ref: "x.y", Err: handler.ErrNotFound})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	got := em.InitFailure()
	require.NotNil(t, got)
	assert.Equal(t, "Runtime.HandlerNotFound", got.Type)
	assert.Contains(t, got.Message, "can't find the handler")
}

func TestServeAndClose(t *testing.T) {
	addr := freeLocalAddr(t)

	errCh := make(chan error, 1)
	go func() {
		errCh <- Serve(WithAddress(addr), WithLogger(zap.NewNop().Sugar()))
	}()

	waitHTTPReady(t, "http://"+addr, 3*time.Second)
	require.NoError(t, Close())

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after Close")
	}
}
