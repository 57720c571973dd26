package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bindery/internal/pipeline"
)

// stageCommandSpec maps one CLI verb to one pipeline stage.
type stageCommandSpec struct {
	use   string
	stage string
	short string
}

var stageCommandSpecs = []stageCommandSpec{
	{use: "harvest", stage: "harvest", short: "Download announced deposits from their journals"},
	{use: "validate-payload", stage: "validate-payload", short: "Check harvested files against declared size and checksum"},
	{use: "validate-bag", stage: "validate-bag", short: "Verify harvested files are complete bags"},
	{use: "validate-xml", stage: "validate-xml", short: "Check bag payloads contain well-formed export XML"},
	{use: "scan", stage: "scan", short: "Scan bag payloads for disallowed content"},
	{use: "reserialize", stage: "reserialize", short: "Repackage scanned deposits into staging bags"},
	{use: "deposit", stage: "deposit", short: "Submit staging bags to the preservation network"},
	{use: "status-poll", stage: "status-poll", short: "Poll the network for preservation agreement"},
}

func newStageCommands(ctx *commandContext) []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(stageCommandSpecs)+1)
	for _, spec := range stageCommandSpecs {
		cmds = append(cmds, newStageCommand(ctx, spec))
	}
	cmds = append(cmds, newCleanCommand(ctx))
	return cmds
}

func newStageCommand(ctx *commandContext, spec stageCommandSpec) *cobra.Command {
	var limit int
	var forceUUID string

	cmd := &cobra.Command{
		Use:   spec.use,
		Short: spec.short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd.Context(), pipeline.Options{}, func(runCtx context.Context, p *pipeline.Pipeline) error {
				summary, err := p.RunStage(runCtx, spec.stage, pipeline.RunOptions{
					Limit:     limit,
					ForceUUID: strings.TrimSpace(forceUUID),
				})
				if err != nil {
					return err
				}
				printSummaries(cmd, []pipeline.Summary{summary})
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum deposits to process (0 = all)")
	cmd.Flags().StringVar(&forceUUID, "force", "", "Run the stage for a single deposit UUID")
	return cmd
}

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var force bool
	var limit int
	var forceUUID string

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove local content for deposits the network has preserved",
		Long: "Remove harvest files, processing workspaces and staging bags for deposits\n" +
			"the network has agreed to preserve. Without --force the command only lists\n" +
			"what would be removed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd.Context(), pipeline.Options{ForceClean: force}, func(runCtx context.Context, p *pipeline.Pipeline) error {
				summary, err := p.RunStage(runCtx, "clean", pipeline.RunOptions{
					Limit:     limit,
					ForceUUID: strings.TrimSpace(forceUUID),
				})
				if err != nil {
					return err
				}
				if !force {
					fmt.Fprintln(cmd.OutOrStdout(), "Dry run; re-run with --force to delete the listed paths.")
				}
				printSummaries(cmd, []pipeline.Summary{summary})
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Actually delete content instead of listing it")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum deposits to process (0 = all)")
	cmd.Flags().StringVar(&forceUUID, "force-uuid", "", "Clean a single deposit UUID")
	return cmd
}

func newRunAllCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "run-all",
		Short: "Run the stages from harvest through status-poll in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd.Context(), pipeline.Options{}, func(runCtx context.Context, p *pipeline.Pipeline) error {
				for _, report := range p.Preflight(runCtx) {
					if !report.Ready {
						return fmt.Errorf("stage %s is not ready: %s", report.Name, report.Detail)
					}
				}
				summaries, err := p.RunAll(runCtx, pipeline.RunOptions{Limit: limit})
				if err != nil {
					return err
				}
				printSummaries(cmd, summaries)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum deposits per stage (0 = all)")
	return cmd
}

func printSummaries(cmd *cobra.Command, summaries []pipeline.Summary) {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.Stage,
			fmt.Sprintf("%d", s.Processed),
			fmt.Sprintf("%d", s.Advanced),
			fmt.Sprintf("%d", s.Held),
			fmt.Sprintf("%d", s.Retried),
			fmt.Sprintf("%d", s.Failed),
		})
	}
	table := renderTable(
		[]string{"Stage", "Processed", "Advanced", "Held", "Retried", "Failed"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	)
	fmt.Fprintln(cmd.OutOrStdout(), table)
}
