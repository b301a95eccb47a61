package main

import (
	"fmt"
	"os"
	"time"

	"github.com/aura-studio/lambda-runtime/invoke/invokecli"
	"github.com/spf13/cobra"
)

func invokeCmd() *cobra.Command {
	var (
		endpoint    string
		function    string
		payload     string
		payloadFile string
		async       bool
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Invoke a function",
		Long:  "Send one event through the Invoke API, by default to a local emulator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body := []byte(payload)
			if payloadFile != "" {
				b, err := os.ReadFile(payloadFile)
				if err != nil {
					return err
				}
				body = b
			}

			opts := []invokecli.Option{
				invokecli.WithFunctionName(function),
				invokecli.WithDefaultTimeout(timeout),
			}
			var client *invokecli.Client
			if endpoint != "" {
				client = invokecli.NewClient(append(opts, invokecli.WithEndpoint(endpoint))...)
			} else {
				var err error
				if client, err = invokecli.NewDefaultClient(cmd.Context(), opts...); err != nil {
					return err
				}
			}

			if async {
				return client.Send(cmd.Context(), body)
			}
			out, err := client.Invoke(cmd.Context(), body)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "http://127.0.0.1:9001", "Invoke API endpoint; empty uses AWS")
	cmd.Flags().StringVar(&function, "function", "function", "Function name")
	cmd.Flags().StringVar(&payload, "payload", "{}", "Event JSON")
	cmd.Flags().StringVar(&payloadFile, "payload-file", "", "Read the event from a file")
	cmd.Flags().BoolVar(&async, "async", false, "Queue the event without waiting for the result")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Invocation timeout")
	return cmd
}
