package invoke

import (
	"github.com/aura-studio/lambda-runtime/config"
	"github.com/aura-studio/lambda-runtime/invocation"
	"github.com/aura-studio/lambda-runtime/journal"
	"github.com/aura-studio/lambda-runtime/scheduler"
	"github.com/mohae/deepcopy"
	"go.uber.org/zap"
)

// Options configures an Engine.
type Options struct {
	DebugMode bool
	// TraceEnv is the variable the trace id is published in when no
	// TraceSlot is given.
	TraceEnv string

	Logger    *zap.SugaredLogger
	Clock     invocation.Clock
	TraceSlot TraceSlot
	Journal   journal.Journal
	Tracker   *scheduler.Tracker
}

var defaultOptions = &Options{
	DebugMode: false,
	TraceEnv:  config.EnvTraceID,
}

// Option changes Options.
type Option interface {
	Apply(*Options)
}

// OptionFunc adapts a function to an Option.
type OptionFunc func(*Options)

func (f OptionFunc) Apply(o *Options) {
	f(o)
}

// NewOptions clones the defaults, applies opts and fills the collaborators
// left unset.
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
	if options.Clock == nil {
		options.Clock = invocation.SystemClock
	}
	if options.TraceSlot == nil {
		options.TraceSlot = EnvTraceSlot(options.TraceEnv)
	}
	if options.Tracker == nil {
		options.Tracker = scheduler.NewTracker()
	}
	return options
}

// WithDebugMode logs every event and outcome.
func WithDebugMode(debug bool) Option {
	return OptionFunc(func(o *Options) {
		o.DebugMode = debug
	})
}

// WithLogger sets the engine logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return OptionFunc(func(o *Options) {
		o.Logger = logger
	})
}

// WithClock sets the clock deadlines are measured against.
func WithClock(clock invocation.Clock) Option {
	return OptionFunc(func(o *Options) {
		o.Clock = clock
	})
}

// WithTraceSlot sets where the trace id of each invocation is published.
func WithTraceSlot(slot TraceSlot) Option {
	return OptionFunc(func(o *Options) {
		o.TraceSlot = slot
	})
}

// WithJournal records every finished invocation into j.
func WithJournal(j journal.Journal) Option {
	return OptionFunc(func(o *Options) {
		o.Journal = j
	})
}

// WithTracker shares a pending-work tracker with code outside the engine.
func WithTracker(t *scheduler.Tracker) Option {
	return OptionFunc(func(o *Options) {
		o.Tracker = t
	})
}
