package handler

import (
	"context"
	"encoding/json"

	"github.com/aura-studio/lambda-runtime/invocation"
	"github.com/aws/aws-lambda-go/lambda"
)

// Wrap adapts any function accepted by lambda.Start. The function runs with
// a context carrying the invocation and its lambdacontext view.
func Wrap(fn any) Handler {
	return FromLambda(lambda.NewHandler(fn))
}

// FromLambda adapts an aws-lambda-go Handler. Its raw JSON reply is passed
// through unchanged.
func FromLambda(h lambda.Handler) Handler {
	return HandlerFunc(func(event json.RawMessage, c *invocation.Context, _ Callback) Future {
		return Async(func() (any, error) {
			out, err := h.Invoke(c.Context(context.Background()), event)
			if err != nil {
				return nil, err
			}
			return json.RawMessage(out), nil
		})
	})
}
