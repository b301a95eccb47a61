// Package invokecli invokes a function through the Lambda Invoke API, either
// on AWS or on the local emulator.
package invokecli

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/tidwall/gjson"
)

var errNoLambdaClient = errors.New("invokecli: no lambda client")

// LambdaClient is the part of the Lambda API the client uses.
type LambdaClient interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// FunctionError is a failure reported by the invoked function.
type FunctionError struct {
	Kind    string
	Type    string
	Message string
	Payload []byte
}

func (e *FunctionError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("function error (%s): %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("function error (%s): %s: %s", e.Kind, e.Type, e.Message)
}

// Client invokes one function.
type Client struct {
	api           LambdaClient
	function      string
	timeout       time.Duration
	clientContext *string
}

// Option configures a Client.
type Option func(*Client)

// WithLambdaClient sets the Lambda API implementation.
func WithLambdaClient(api LambdaClient) Option {
	return func(c *Client) { c.api = api }
}

// WithEndpoint talks to a Lambda-compatible endpoint such as the local
// emulator, without request signing.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.api = NewEndpointClient(endpoint) }
}

// WithFunctionName selects the function to invoke. Defaults to "function",
// the name the emulator serves.
func WithFunctionName(name string) Option {
	return func(c *Client) { c.function = name }
}

// WithDefaultTimeout bounds synchronous invocations whose context carries no
// deadline. Zero disables it.
func WithDefaultTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.timeout = timeout }
}

// WithClientContext attaches custom client context, sent base64 encoded as
// the Invoke API expects.
func WithClientContext(custom map[string]string) Option {
	return func(c *Client) {
		b, err := json.Marshal(map[string]any{"custom": custom})
		if err != nil {
			return
		}
		c.clientContext = aws.String(base64.StdEncoding.EncodeToString(b))
	}
}

// NewClient returns a client for function "function" with a 30s default
// timeout, adjusted by opts.
func NewClient(opts ...Option) *Client {
	c := &Client{
		function: "function",
		timeout:  30 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// NewEndpointClient returns an anonymous Lambda client for endpoint.
func NewEndpointClient(endpoint string) *lambda.Client {
	return lambda.New(lambda.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(endpoint),
		Credentials:  aws.AnonymousCredentials{},
	})
}

// NewDefaultClient builds a client from the default AWS configuration.
func NewDefaultClient(ctx context.Context, opts ...Option) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("invokecli: load aws config: %w", err)
	}
	return NewClient(append([]Option{WithLambdaClient(lambda.NewFromConfig(cfg))}, opts...)...), nil
}

func (c *Client) input(typ types.InvocationType, payload []byte) *lambda.InvokeInput {
	return &lambda.InvokeInput{
		FunctionName:   aws.String(c.function),
		InvocationType: typ,
		ClientContext:  c.clientContext,
		Payload:        payload,
	}
}

// Invoke sends payload synchronously and returns the function's reply. A
// failure reported by the function is a *FunctionError.
func (c *Client) Invoke(ctx context.Context, payload []byte) ([]byte, error) {
	if c.api == nil {
		return nil, errNoLambdaClient
	}
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	out, err := c.api.Invoke(ctx, c.input(types.InvocationTypeRequestResponse, payload))
	if err != nil {
		return nil, fmt.Errorf("invokecli: invoke %s: %w", c.function, err)
	}
	if out.FunctionError != nil {
		body := gjson.ParseBytes(out.Payload)
		return nil, &FunctionError{
			Kind:    aws.ToString(out.FunctionError),
			Type:    body.Get("errorType").String(),
			Message: body.Get("errorMessage").String(),
			Payload: out.Payload,
		}
	}
	return out.Payload, nil
}

// Send queues payload for asynchronous processing.
func (c *Client) Send(ctx context.Context, payload []byte) error {
	if c.api == nil {
		return errNoLambdaClient
	}
	if _, err := c.api.Invoke(ctx, c.input(types.InvocationTypeEvent, payload)); err != nil {
		return fmt.Errorf("invokecli: send %s: %w", c.function, err)
	}
	return nil
}
