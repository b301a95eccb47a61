package invocation

import "net/http"

// Header names carried by a next-invocation reply.
const (
	HeaderRequestID          = "Lambda-Runtime-Aws-Request-Id"
	HeaderDeadlineMs         = "Lambda-Runtime-Deadline-Ms"
	HeaderTraceID            = "Lambda-Runtime-Trace-Id"
	HeaderInvokedFunctionArn = "Lambda-Runtime-Invoked-Function-Arn"
	HeaderClientContext      = "Lambda-Runtime-Client-Context"
	HeaderCognitoIdentity    = "Lambda-Runtime-Cognito-Identity"
)

// Headers is the raw per-invocation metadata. Values are kept as received.
type Headers struct {
	RequestID          string
	DeadlineMs         string
	TraceID            string
	InvokedFunctionArn string
	ClientContext      string
	Identity           string
}

// HeadersFrom picks the invocation headers out of a control reply.
func HeadersFrom(h http.Header) Headers {
	return Headers{
		RequestID:          h.Get(HeaderRequestID),
		DeadlineMs:         h.Get(HeaderDeadlineMs),
		TraceID:            h.Get(HeaderTraceID),
		InvokedFunctionArn: h.Get(HeaderInvokedFunctionArn),
		ClientContext:      h.Get(HeaderClientContext),
		Identity:           h.Get(HeaderCognitoIdentity),
	}
}

// Header renders h back into wire form; empty values are omitted.
func (h Headers) Header() http.Header {
	out := make(http.Header)
	set := func(k, v string) {
		if v != "" {
			out.Set(k, v)
		}
	}
	set(HeaderRequestID, h.RequestID)
	set(HeaderDeadlineMs, h.DeadlineMs)
	set(HeaderTraceID, h.TraceID)
	set(HeaderInvokedFunctionArn, h.InvokedFunctionArn)
	set(HeaderClientContext, h.ClientContext)
	set(HeaderCognitoIdentity, h.Identity)
	return out
}
