package invoke

import (
	"context"
	"errors"

	"github.com/aura-studio/lambda-runtime/config"
	"github.com/aura-studio/lambda-runtime/handler"
	"github.com/aura-studio/lambda-runtime/rapi"
	"go.uber.org/zap"
)

// Prepare loads the runtime configuration, connects to the control API and
// resolves the handler. A resolution failure is reported to the control API
// as an init error before it is returned.
func Prepare(ctx context.Context, provider config.Provider, resolver handler.Resolver, opts ...Option) (*Engine, error) {
	cfg, err := provider.Load()
	if err != nil {
		return nil, err
	}

	api := rapi.NewClient(rapi.WithAddress(cfg.RuntimeAPI))

	h, err := resolver.Resolve(cfg)
	if err != nil {
		if _, initErr := api.SendInitError(ctx, err); initErr != nil {
			return nil, errors.Join(err, initErr)
		}
		return nil, err
	}

	return NewEngine(api, h, cfg, opts...), nil
}

// Bootstrap prepares an engine and runs it.
func Bootstrap(ctx context.Context, provider config.Provider, resolver handler.Resolver, opts ...Option) error {
	e, err := Prepare(ctx, provider, resolver, opts...)
	if err != nil {
		return err
	}
	return e.Run(ctx)
}

// Start runs h against the control API named by the environment. It only
// returns when the engine was stopped; any other end of the loop exits the
// process.
func Start(h handler.Handler, opts ...Option) {
	logger := NewOptions(opts...).Logger
	logger.Info("Runtime starting...")
	err := Bootstrap(context.Background(), config.NewEnvProvider(), handler.Static(h), opts...)
	if errors.Is(err, ErrStopped) {
		return
	}
	logger.Fatalw("Runtime exiting due to an error", zap.Error(err))
}
