package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"bindery/internal/pipeline"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [uuid...]",
		Short: "Reset failed deposits so the pipeline picks them up again",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd.Context(), pipeline.Options{}, func(runCtx context.Context, p *pipeline.Pipeline) error {
				reset, err := p.RetryFailed(runCtx, args...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(reset) == 0 {
					fmt.Fprintln(out, "No failed deposits to retry")
					return nil
				}
				for _, dep := range reset {
					fmt.Fprintf(out, "Deposit %s reset to %s\n", dep.UUID, dep.State)
				}
				return nil
			})
		},
	}
}
