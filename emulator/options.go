package emulator

import (
	"time"

	"github.com/mohae/deepcopy"
	"go.uber.org/zap"
)

// Options configures an Emulator.
type Options struct {
	Address     string
	Timeout     time.Duration
	FunctionArn string
	QueueSize   int
	DebugMode   bool
	// FetchStatuses are answered, in order, to the first next-invocation
	// requests instead of an event.
	FetchStatuses []int

	Logger *zap.SugaredLogger
}

var defaultOptions = &Options{
	Address:       "127.0.0.1:9001",
	Timeout:       3 * time.Second,
	FunctionArn:   "arn:aws:lambda:us-east-1:000000000000:function:function",
	QueueSize:     128,
	FetchStatuses: []int{},
}

// Option changes Options.
type Option interface {
	Apply(o *Options)
}

// OptionFunc adapts a function to an Option.
type OptionFunc func(*Options)

func (f OptionFunc) Apply(o *Options) { f(o) }

func NewOptions(opts ...Option) *Options {
	options := deepcopy.Copy(defaultOptions).(*Options)
	for _, opt := range opts {
		if opt != nil {
			opt.Apply(options)
		}
	}
	if options.Logger == nil {
		options.Logger = zap.S()
	}
	return options
}

// WithAddress sets the listen address used by Serve.
func WithAddress(addr string) Option {
	return OptionFunc(func(o *Options) {
		o.Address = addr
	})
}

// WithTimeout sets how far in the future each invocation deadline lies.
func WithTimeout(d time.Duration) Option {
	return OptionFunc(func(o *Options) {
		o.Timeout = d
	})
}

// WithFunctionArn sets the ARN reported with each invocation.
func WithFunctionArn(arn string) Option {
	return OptionFunc(func(o *Options) {
		o.FunctionArn = arn
	})
}

// WithQueueSize bounds the number of queued invocations.
func WithQueueSize(n int) Option {
	return OptionFunc(func(o *Options) {
		o.QueueSize = n
	})
}

// WithDebugMode logs every request.
func WithDebugMode() Option {
	return OptionFunc(func(o *Options) {
		o.DebugMode = true
	})
}

// WithFetchStatuses answers the first fetches with codes instead of an invocation.
func WithFetchStatuses(codes ...int) Option {
	return OptionFunc(func(o *Options) {
		o.FetchStatuses = append(o.FetchStatuses, codes...)
	})
}

// WithLogger sets the emulator logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return OptionFunc(func(o *Options) {
		o.Logger = logger
	})
}
