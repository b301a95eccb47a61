// Package rapi is a client for the runtime control API: it fetches the next
// invocation and posts its outcome.
package rapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/lambda/messages"
)

const (
	APIVersion = "2018-06-01"

	pathNext     = "/" + APIVersion + "/runtime/invocation/next"
	pathInitErr  = "/" + APIVersion + "/runtime/init/error"
	pathResponse = "/" + APIVersion + "/runtime/invocation/%s/response"
	pathError    = "/" + APIVersion + "/runtime/invocation/%s/error"

	HeaderFunctionErrorType = "Lambda-Runtime-Function-Error-Type"
)

// Response is a control API reply.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Client talks to the control API over one long-lived connection.
// At most one request is in flight at a time.
type Client struct {
	*Options
	inflight sync.Mutex
}

// NewClient returns a Client for the configured address.
func NewClient(opts ...Option) *Client {
	return &Client{
		Options: NewOptions(opts...),
	}
}

// FetchNext blocks until the control API hands out the next invocation.
// A non-200 status is returned as a Response, not as an error.
func (c *Client) FetchNext(ctx context.Context) (*Response, error) {
	return c.Do(ctx, http.MethodGet, pathNext, nil, nil)
}

// SendSuccess posts value, JSON encoded, as the result of requestID.
// json.RawMessage and []byte values must hold JSON and are sent verbatim.
func (c *Client) SendSuccess(ctx context.Context, requestID string, value any) (*Response, error) {
	body, err := encode(value)
	if err != nil {
		return nil, &EncodeError{RequestID: requestID, Err: err}
	}
	return c.Do(ctx, http.MethodPost, fmt.Sprintf(pathResponse, requestID), body, nil)
}

// SendError posts err as the failure of requestID.
func (c *Client) SendError(ctx context.Context, requestID string, err error) (*Response, error) {
	return c.sendErrorBody(ctx, fmt.Sprintf(pathError, requestID), err)
}

// SendInitError reports a startup failure, before any invocation was fetched.
func (c *Client) SendInitError(ctx context.Context, err error) (*Response, error) {
	return c.sendErrorBody(ctx, pathInitErr, err)
}

func (c *Client) sendErrorBody(ctx context.Context, path string, err error) (*Response, error) {
	payload := ErrorPayload(err)
	body, merr := json.Marshal(payload)
	if merr != nil {
		return nil, fmt.Errorf("rapi: encoding error body: %w", merr)
	}
	return c.Do(ctx, http.MethodPost, path, body, map[string]string{
		HeaderFunctionErrorType: payload.Type,
	})
}

// ErrorPayload converts err into the {errorMessage, errorType} body.
func ErrorPayload(err error) *messages.InvokeResponse_Error {
	if err == nil {
		return &messages.InvokeResponse_Error{}
	}
	return &messages.InvokeResponse_Error{
		Message: err.Error(),
		Type:    ErrorType(err),
	}
}

// Do sends a single request and reads the whole reply. Any failure to
// exchange or fully read the reply is a *TransportError.
func (c *Client) Do(ctx context.Context, method, path string, body []byte, headers map[string]string) (*Response, error) {
	c.inflight.Lock()
	defer c.inflight.Unlock()

	op := method + " " + path
	url := "http://" + c.Address + path

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	for key, value := range c.Headers {
		req.Header.Set(key, value)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("the connection was terminated while the message was still being received: %w", err)}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}, nil
}

func encode(value any) ([]byte, error) {
	switch v := value.(type) {
	case json.RawMessage:
		if v == nil {
			return []byte("null"), nil
		}
		if !json.Valid(v) {
			return nil, fmt.Errorf("raw message is not valid JSON")
		}
		return v, nil
	case []byte:
		if v == nil {
			return []byte("null"), nil
		}
		if !json.Valid(v) {
			return nil, fmt.Errorf("byte payload is not valid JSON")
		}
		return v, nil
	default:
		return json.Marshal(value)
	}
}
