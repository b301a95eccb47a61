package invokecli

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aura-studio/lambda-runtime/config"
	"github.com/aura-studio/lambda-runtime/emulator"
	"github.com/aura-studio/lambda-runtime/handler"
	"github.com/aura-studio/lambda-runtime/invocation"
	"github.com/aura-studio/lambda-runtime/invoke"
	"github.com/aura-studio/lambda-runtime/rapi"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockLambdaClient struct {
	mu            sync.Mutex
	payload       []byte
	functionError *string
	err           error
	delay         time.Duration
	inputs        []*lambda.InvokeInput
}

func (m *mockLambdaClient) Invoke(ctx context.Context, params *lambda.InvokeInput,
	optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, params)
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &lambda.InvokeOutput{StatusCode: 200, Payload: m.payload, FunctionError: m.functionError}, nil
}

func TestInvokeSuccess(t *testing.T) {
	mock := &mockLambdaClient{payload: []byte(`{"ok":true}`)}
	c := NewClient(WithLambdaClient(mock), WithFunctionName("orders"))

	out, err := c.Invoke(context.Background(), []byte(`{"id":1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(out))

	require.Len(t, mock.inputs, 1)
	in := mock.inputs[0]
	assert.Equal(t, "orders", aws.ToString(in.FunctionName))
	assert.Equal(t, types.InvocationTypeRequestResponse, in.InvocationType)
	assert.Equal(t, `{"id":1}`, string(in.Payload))
}

func TestInvokeFunctionError(t *testing.T) {
	mock := &mockLambdaClient{
		payload:       []byte(`{"errorMessage":"out of stock","errorType":"TunnelError"}`),
		functionError: aws.String("Unhandled"),
	}
	c := NewClient(WithLambdaClient(mock))

	_, err := c.Invoke(context.Background(), []byte(`{}`))
	var fe *FunctionError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Unhandled", fe.Kind)
	assert.Equal(t, "TunnelError", fe.Type)
	assert.Equal(t, "out of stock", fe.Message)
	assert.Equal(t, "function error (Unhandled): TunnelError: out of stock", fe.Error())
}

func TestInvokeTransportError(t *testing.T) {
	boom := errors.New("connection reset")
	c := NewClient(WithLambdaClient(&mockLambdaClient{err: boom}))
	_, err := c.Invoke(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
}

func TestInvokeDefaultTimeout(t *testing.T) {
	c := NewClient(WithLambdaClient(&mockLambdaClient{delay: time.Second}), WithDefaultTimeout(20*time.Millisecond))
	_, err := c.Invoke(context.Background(), nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInvokeWithoutClient(t *testing.T) {
	_, err := NewClient().Invoke(context.Background(), nil)
	assert.Error(t, err)
	assert.Error(t, NewClient().Send(context.Background(), nil))
}

func TestSendUsesEventInvocation(t *testing.T) {
	mock := &mockLambdaClient{}
	require.NoError(t, NewClient(WithLambdaClient(mock)).Send(context.Background(), []byte(`{}`)))
	require.Len(t, mock.inputs, 1)
	assert.Equal(t, types.InvocationTypeEvent, mock.inputs[0].InvocationType)
	assert.Equal(t, "function", aws.ToString(mock.inputs[0].FunctionName))
}

func TestInvokeClientContext(t *testing.T) {
	mock := &mockLambdaClient{payload: []byte(`null`)}
	c := NewClient(WithLambdaClient(mock), WithClientContext(map[string]string{"tenant": "acme"}))

	_, err := c.Invoke(context.Background(), []byte(`{}`))
	require.NoError(t, err)
	require.Len(t, mock.inputs, 1)
	raw, err := base64.StdEncoding.DecodeString(aws.ToString(mock.inputs[0].ClientContext))
	require.NoError(t, err)
	assert.JSONEq(t, `{"custom":{"tenant":"acme"}}`, string(raw))

	_, err = NewClient(WithLambdaClient(mock)).Invoke(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, mock.inputs[1].ClientContext)
}

func TestInvokeAgainstEmulator(t *testing.T) {
	em := emulator.New(emulator.WithLogger(zap.NewNop().Sugar()))
	srv := httptest.NewServer(em)
	defer srv.Close()

	api := rapi.NewClient(rapi.WithAddress(strings.TrimPrefix(srv.URL, "http://")))
	h := handler.HandlerFunc(func(event json.RawMessage, c *invocation.Context, cb handler.Callback) handler.Future {
		if string(event) == `"fail"` {
			return handler.Rejected(errors.New("asked to fail"))
		}
		return handler.Resolved(map[string]any{"echo": event, "client": c.ClientContext})
	})
	e := invoke.NewEngine(api, h, &config.RuntimeConfig{},
		invoke.WithLogger(zap.NewNop().Sugar()),
		invoke.WithTraceSlot(invoke.TraceSlotFunc(func(string) {})),
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	defer func() {
		cancel()
		srv.CloseClientConnections()
		<-done
	}()

	c := NewClient(WithEndpoint(srv.URL), WithDefaultTimeout(5*time.Second),
		WithClientContext(map[string]string{"tenant": "acme"}))

	out, err := c.Invoke(context.Background(), []byte(`{"n":1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"echo":{"n":1},"client":{"custom":{"tenant":"acme"}}}`, string(out))

	_, err = c.Invoke(context.Background(), []byte(`"fail"`))
	var fe *FunctionError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "asked to fail", fe.Message)
	assert.Equal(t, "errorString", fe.Type)
}
