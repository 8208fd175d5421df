package cmd

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/assistant-operate/api/schemas"
	"github.com/xkilldash9x/assistant-operate/internal/agent"
)

// newTurnCommand runs a single turn for a fresh session seeded with the objective and
// prints the resulting operations as a JSON array. It does not execute them.
func newTurnCommand(opts *rootOptions) *cobra.Command {
	var (
		imagePath   string
		objective   string
		dumpMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "turn",
		Short: "Send one screenshot and objective to the endpoint and print the validated operations.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := prometheus.NewRegistry()
			adapter, err := agent.NewAdapter(opts.cfg, opts.logger, agent.WithRegisterer(reg))
			if err != nil {
				return err
			}
			if err := adapter.Session().Append(schemas.RoleUser, objective); err != nil {
				return err
			}

			ops, turnErr := adapter.RunTurn(cmd.Context(), imagePath, objective)

			// Metrics go to stderr so stdout stays a single JSON document.
			if dumpMetrics {
				if err := writeMetrics(cmd.ErrOrStderr(), reg); err != nil {
					return err
				}
			}
			if turnErr != nil {
				return fmt.Errorf("turn failed: %w", turnErr)
			}

			encoded, err := schemas.MarshalOperations(ops)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), encoded)
			return nil
		},
	}

	cmd.Flags().StringVarP(&imagePath, "image", "i", "", "path to the screenshot PNG (required)")
	cmd.Flags().StringVarP(&objective, "objective", "o", "", "task objective (required)")
	cmd.Flags().BoolVar(&dumpMetrics, "metrics", false, "write the turn's metrics in text exposition format to stderr")
	_ = cmd.MarkFlagRequired("image")
	_ = cmd.MarkFlagRequired("objective")
	return cmd
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}
