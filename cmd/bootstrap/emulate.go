package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aura-studio/lambda-runtime/emulator"
	"github.com/spf13/cobra"
)

func emulateCmd() *cobra.Command {
	var (
		addr     string
		timeout  time.Duration
		arn      string
		debug    bool
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "emulate",
		Short: "Run a local runtime API",
		Long:  "Serve the runtime API locally and accept invocations on /2015-03-31/functions/function/invocations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(logLevel, debug)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			opts := []emulator.Option{
				emulator.WithAddress(addr),
				emulator.WithTimeout(timeout),
				emulator.WithFunctionArn(arn),
				emulator.WithLogger(logger),
			}
			if debug {
				opts = append(opts, emulator.WithDebugMode())
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- emulator.Serve(opts...)
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case sig := <-sigCh:
				logger.Infof("shutdown signal received: %s", sig)
				return emulator.Close()
			case err := <-errCh:
				if err == nil {
					return errors.New("emulator stopped")
				}
				return err
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:9001", "Listen address")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "Function timeout used for invocation deadlines")
	cmd.Flags().StringVar(&arn, "arn", "arn:aws:lambda:us-east-1:000000000000:function:function", "Invoked function ARN")
	cmd.Flags().BoolVar(&debug, "debug", false, "Log every request")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level")
	return cmd
}
