package cmd

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/assistant-operate/internal/assistclient"
)

func newHealthCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the assistant endpoint is up.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := assistclient.New(opts.cfg.Assistant, opts.logger)
			if err != nil {
				return err
			}

			body, err := client.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("assistant endpoint is down: %w", err)
			}

			encoded, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalToString(body)
			if err != nil {
				return fmt.Errorf("failed to encode health response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "assistant endpoint %s is up: %s\n", client.BaseURL(), encoded)
			return nil
		},
	}
}
