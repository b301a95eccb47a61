package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/aura-studio/lambda-runtime/config"
	"github.com/aura-studio/lambda-runtime/invoke"
	"github.com/aura-studio/lambda-runtime/server"
	"github.com/spf13/cobra"
)

func rootCmd() *cobra.Command {
	var (
		configFile string
		envFiles   []string
		debug      bool
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           "bootstrap [handler]",
		Short:         "Function runtime",
		Long:          "Fetch invocations from the runtime API and dispatch them to the configured handler",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(logLevel, debug)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if len(args) == 1 {
				if err := os.Setenv(config.EnvHandler, args[0]); err != nil {
					return err
				}
			}

			opts := []server.Option{server.WithLogger(logger)}
			switch {
			case configFile != "":
				opts = append(opts, server.WithServeConfigFile(configFile))
			default:
				if p, err := server.FindDefaultServeConfigFile(); err == nil {
					logger.Infof("using config %s", p)
					opts = append(opts, server.WithServeConfigFile(p))
				}
			}
			if len(envFiles) > 0 {
				opts = append(opts, server.WithEnvFiles(envFiles...))
			}
			if debug {
				opts = append(opts, server.WithInvoke(invoke.WithDebugMode(true)))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("Runtime starting...")
			err = server.Serve(ctx, opts...)
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				logger.Info("shutdown signal received")
				return nil
			}
			if err != nil {
				logger.Errorw("Runtime exiting due to an error", "error", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "Runtime config file (default: runtime.yaml or bootstrap.yaml if present)")
	cmd.Flags().StringSliceVar(&envFiles, "env-file", nil, "Dotenv files loaded before reading the environment")
	cmd.Flags().BoolVar(&debug, "debug", false, "Log every request and outcome")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level")

	cmd.AddCommand(emulateCmd(), invokeCmd())
	return cmd
}
