package rapi

import (
	"net/http"

	"github.com/mohae/deepcopy"
)

// HTTPClient is the subset of *http.Client the control client needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Client.
type Options struct {
	// HTTPClient defaults to a client pinned to a single keep-alive connection.
	HTTPClient HTTPClient
	// Address is the host[:port] of the control API, e.g. AWS_LAMBDA_RUNTIME_API.
	Address   string
	UserAgent string
	Headers   map[string]string
}

// Option changes Options.
type Option interface {
	Apply(o *Options)
}

// OptionFunc adapts a function to an Option.
type OptionFunc func(*Options)

func (f OptionFunc) Apply(o *Options) { f(o) }

var defaultOptions = &Options{
	Address:   "127.0.0.1:9001",
	UserAgent: "aura-lambda-runtime/1",
	Headers: map[string]string{
		"Accept": "application/json",
	},
}

func NewOptions(opts ...Option) *Options {
	o := deepcopy.Copy(defaultOptions).(*Options)
	for _, opt := range opts {
		if opt != nil {
			opt.Apply(o)
		}
	}
	if o.HTTPClient == nil {
		o.HTTPClient = newSingleConnClient()
	}
	return o
}

// WithAddress sets the control API host[:port].
func WithAddress(addr string) Option {
	return OptionFunc(func(o *Options) {
		o.Address = addr
	})
}

// WithHTTPClient replaces the single-connection client.
func WithHTTPClient(client HTTPClient) Option {
	return OptionFunc(func(o *Options) {
		o.HTTPClient = client
	})
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return OptionFunc(func(o *Options) {
		o.UserAgent = ua
	})
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return OptionFunc(func(o *Options) {
		if o.Headers == nil {
			o.Headers = make(map[string]string)
		}
		o.Headers[key] = value
	})
}

func newSingleConnClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     1,
			MaxIdleConns:        1,
			MaxIdleConnsPerHost: 1,
			DisableCompression:  true,
		},
	}
}
