// Package server assembles a runtime process: configuration, handler
// resolution, journal and the invocation loop.
package server

import (
	"context"
	"errors"
	"sync"

	"github.com/aura-studio/lambda-runtime/config"
	"github.com/aura-studio/lambda-runtime/dynamic"
	"github.com/aura-studio/lambda-runtime/handler"
	"github.com/aura-studio/lambda-runtime/invoke"
	"github.com/aura-studio/lambda-runtime/journal"
	"go.uber.org/zap"
)

var (
	mu     sync.Mutex
	engine *invoke.Engine
	cancel context.CancelFunc
)

// Serve runs the invocation loop until Close or a fatal error. It returns nil
// after Close.
func Serve(ctx context.Context, opts ...Option) error {
	options := &Options{}
	for _, opt := range opts {
		if opt != nil {
			opt.Apply(options)
		}
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.S()
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	j, err := journal.New(ctx, options.Journal, logger)
	if err != nil {
		return err
	}

	invokeOpts := append([]invoke.Option{invoke.WithLogger(logger)}, options.Invoke...)
	if j != nil {
		invokeOpts = append(invokeOpts, invoke.WithJournal(j))
	}

	e, err := invoke.Prepare(ctx, config.NewEnvProvider(options.EnvFiles...), resolver(options, logger), invokeOpts...)
	if err != nil {
		return err
	}

	mu.Lock()
	engine, cancel = e, stop
	mu.Unlock()

	err = e.Run(ctx)
	if errors.Is(err, invoke.ErrStopped) || (!e.IsRunning() && errors.Is(err, context.Canceled)) {
		return nil
	}
	return err
}

// resolver looks handlers up in the default registry first, then as tunnel
// packages. The task root serves as local warehouse unless one is set.
func resolver(options *Options, logger *zap.SugaredLogger) handler.Resolver {
	if options.Resolver != nil {
		return options.Resolver
	}
	tunnels := handler.ResolverFunc(func(cfg *config.RuntimeConfig) (handler.Handler, error) {
		loader := dynamic.NewLoader(logger, options.Dynamic...)
		if loader.LocalWarehouse == "" {
			loader.LocalWarehouse = cfg.TaskRoot
		}
		loader.Install()
		r := &handler.TunnelResolver{Loader: loader, ContextKey: options.ContextKey}
		return r.Resolve(cfg)
	})
	return handler.Chain(handler.DefaultRegistry, tunnels)
}

// Close stops the running loop, abandoning any fetch in progress.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if engine != nil {
		engine.Stop()
	}
	if cancel != nil {
		cancel()
	}
	engine, cancel = nil, nil
}
