package handler

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aura-studio/lambda-runtime/config"
)

// ErrResolution matches every *ResolutionError.
var ErrResolution = errors.New("handler resolution")

// ErrNotFound is the cause when no handler is known under a reference.
var ErrNotFound = errors.New("can't find the handler")

// ResolutionError is a failure to find the configured handler.
type ResolutionError struct {
	Ref string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("handler: resolve %q: %v", e.Ref, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

func (e *ResolutionError) Is(target error) bool { return target == ErrResolution }

// ErrorType labels init errors reported to the control API.
func (e *ResolutionError) ErrorType() string { return "Runtime.HandlerNotFound" }

// Resolver locates the handler named by the runtime configuration.
type Resolver interface {
	Resolve(cfg *config.RuntimeConfig) (Handler, error)
}

// ResolverFunc adapts a function to a Resolver.
type ResolverFunc func(cfg *config.RuntimeConfig) (Handler, error)

func (f ResolverFunc) Resolve(cfg *config.RuntimeConfig) (Handler, error) { return f(cfg) }

// Static always resolves to h.
func Static(h Handler) Resolver {
	return ResolverFunc(func(*config.RuntimeConfig) (Handler, error) {
		return h, nil
	})
}

// Registry maps handler references to in-process handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds ref to h, replacing any earlier binding.
func (r *Registry) Register(ref string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[ref] = h
}

// Resolve returns the handler registered under cfg.Handler.
func (r *Registry) Resolve(cfg *config.RuntimeConfig) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.handlers[cfg.Handler]; ok {
		return h, nil
	}
	return nil, &ResolutionError{Ref: cfg.Handler, Err: ErrNotFound}
}

// DefaultRegistry receives handlers added with Register.
var DefaultRegistry = NewRegistry()

// Register binds ref in DefaultRegistry.
func Register(ref string, h Handler) {
	DefaultRegistry.Register(ref, h)
}

// Chain tries each resolver in order and returns the first handler found.
func Chain(resolvers ...Resolver) Resolver {
	return ResolverFunc(func(cfg *config.RuntimeConfig) (Handler, error) {
		var errs []error
		for _, r := range resolvers {
			h, err := r.Resolve(cfg)
			if err == nil {
				return h, nil
			}
			errs = append(errs, err)
		}
		if len(errs) == 0 {
			errs = append(errs, ErrNotFound)
		}
		return nil, &ResolutionError{Ref: cfg.Handler, Err: errors.Join(errs...)}
	})
}
