package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bindery/internal/config"
	"bindery/internal/journal"
	"bindery/internal/notifications"
	"bindery/internal/store"
)

func newPingCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Contact registered journal gateways to confirm liveness",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				logger, err := ctx.ensureLogger()
				if err != nil {
					return err
				}
				pinger := journal.NewPinger(cfg, st, logger)
				results, err := pinger.PingAll(cmd.Context(), dryRun)
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(results))
				for _, result := range results {
					status := "reachable"
					switch {
					case result.Skipped:
						status = "skipped (below min version)"
					case dryRun:
						status = "would contact"
					case result.Err != nil:
						status = "unreachable"
					}
					version := result.Journal.OJSVersion
					if result.OJSVersion != "" {
						version = result.OJSVersion
					}
					rows = append(rows, []string{result.Journal.UUID, result.Journal.Title, version, status})
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No journals registered")
					return nil
				}
				table := renderTable(
					[]string{"Journal", "Title", "OJS", "Status"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report which journals would be contacted without sending requests")
	return cmd
}

func newHealthCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health-check",
		Short: "Report journals silent past the configured window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				logger, err := ctx.ensureLogger()
				if err != nil {
					return err
				}
				notifier := notifications.NewService(cfg)
				check := journal.NewHealthCheck(cfg, st, notifier, logger)
				silent, err := check.Run(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(silent) == 0 {
					fmt.Fprintf(out, "All journals contacted within the last %d days\n", cfg.Journals.SilenceDays)
					return nil
				}
				rows := make([][]string, 0, len(silent))
				for _, j := range silent {
					contacted := "never"
					if j.ContactedAt != nil {
						contacted = j.ContactedAt.Format("2006-01-02")
					}
					rows = append(rows, []string{j.UUID, j.Title, contacted})
				}
				table := renderTable(
					[]string{"Journal", "Title", "Last contact"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}
}

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			notifier := notifications.NewService(cfg)
			if err := notifier.TestNotification(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}
