package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aura-studio/dynamic"
	"github.com/aura-studio/lambda-runtime/config"
	"github.com/aura-studio/lambda-runtime/invocation"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrorPrefix marks a tunnel reply that carries a failure message.
const ErrorPrefix = "error://"

// PackageLoader supplies tunnels by package and version.
type PackageLoader interface {
	GetPackage(pkg, version string) (dynamic.Tunnel, error)
}

// TunnelError is a failure reported by a tunnel package.
type TunnelError struct {
	Route   string
	Message string
}

func (e *TunnelError) Error() string { return e.Message }

func (e *TunnelError) ErrorType() string { return "TunnelError" }

// TunnelResolver resolves references of the form pkg[@version].name to a
// route on a dynamic tunnel package.
type TunnelResolver struct {
	Loader PackageLoader
	// ContextKey, when set, is the field under which invocation metadata is
	// added to object events before they reach the tunnel.
	ContextKey string
}

// ParseRef splits a handler reference into package, version and route.
func ParseRef(ref string) (pkg, version, route string, err error) {
	i := strings.LastIndex(ref, ".")
	if i <= 0 || i == len(ref)-1 {
		return "", "", "", fmt.Errorf("malformed handler reference %q", ref)
	}
	pkg, name := ref[:i], ref[i+1:]
	if at := strings.Index(pkg, "@"); at >= 0 {
		pkg, version = pkg[:at], pkg[at+1:]
		if pkg == "" || version == "" {
			return "", "", "", fmt.Errorf("malformed handler reference %q", ref)
		}
	}
	return pkg, version, "/" + name, nil
}

// Resolve loads the package named by cfg.Handler.
func (r *TunnelResolver) Resolve(cfg *config.RuntimeConfig) (Handler, error) {
	if r.Loader == nil {
		return nil, &ResolutionError{Ref: cfg.Handler, Err: errors.New("no package loader")}
	}
	pkg, version, route, err := ParseRef(cfg.Handler)
	if err != nil {
		return nil, &ResolutionError{Ref: cfg.Handler, Err: err}
	}
	tunnel, err := r.Loader.GetPackage(pkg, version)
	if err != nil {
		return nil, &ResolutionError{Ref: cfg.Handler, Err: err}
	}
	tunnel.Init()
	return &tunnelHandler{tunnel: tunnel, route: route, contextKey: r.ContextKey}, nil
}

type tunnelHandler struct {
	tunnel     dynamic.Tunnel
	route      string
	contextKey string
}

type envelope struct {
	RequestID          string `json:"requestId"`
	InvokedFunctionArn string `json:"invokedFunctionArn,omitempty"`
	TraceID            string `json:"traceId,omitempty"`
	RemainingTimeMs    int64  `json:"remainingTimeMs"`
	FunctionName       string `json:"functionName,omitempty"`
	FunctionVersion    string `json:"functionVersion,omitempty"`
}

func (h *tunnelHandler) Handle(event json.RawMessage, c *invocation.Context, _ Callback) Future {
	return Async(func() (any, error) {
		req, err := h.request(event, c)
		if err != nil {
			return nil, err
		}
		return decodeReply(h.route, h.tunnel.Invoke(h.route, req))
	})
}

func (h *tunnelHandler) request(event json.RawMessage, c *invocation.Context) (string, error) {
	req := string(event)
	if h.contextKey == "" || !gjson.Parse(req).IsObject() {
		return req, nil
	}
	return sjson.Set(req, h.contextKey, envelope{
		RequestID:          c.RequestID,
		InvokedFunctionArn: c.InvokedFunctionArn,
		TraceID:            c.TraceID,
		RemainingTimeMs:    c.RemainingTimeMillis(),
		FunctionName:       c.FunctionName,
		FunctionVersion:    c.FunctionVersion,
	})
}

// decodeReply maps a tunnel reply to a result. JSON replies pass through,
// anything else is sent as a JSON string.
func decodeReply(route, reply string) (any, error) {
	if msg, ok := strings.CutPrefix(reply, ErrorPrefix); ok {
		return nil, &TunnelError{Route: route, Message: msg}
	}
	if reply != "" && gjson.Valid(reply) {
		return json.RawMessage(reply), nil
	}
	return reply, nil
}
