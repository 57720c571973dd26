package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bindery/internal/config"
	"bindery/internal/store"
)

func newDBHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "db-health",
		Short: "Check the deposit database for structural problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				health, err := st.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database:   %s\n", health.DBPath)
				fmt.Fprintf(out, "Exists:     %s\n", yesNo(health.DatabaseExists))
				fmt.Fprintf(out, "Readable:   %s\n", yesNo(health.DatabaseReadable))
				fmt.Fprintf(out, "Integrity:  %s\n", yesNo(health.IntegrityCheck))
				fmt.Fprintf(out, "Tables:     %s\n", strings.Join(health.TablesPresent, ", "))
				if len(health.MissingTables) > 0 {
					fmt.Fprintf(out, "Missing:    %s\n", strings.Join(health.MissingTables, ", "))
				}
				fmt.Fprintf(out, "Deposits:   %d\n", health.TotalDeposits)
				fmt.Fprintf(out, "Journals:   %d\n", health.TotalJournals)
				if health.Error != "" {
					return fmt.Errorf("database unhealthy: %s", health.Error)
				}
				if len(health.MissingTables) > 0 || !health.IntegrityCheck {
					return fmt.Errorf("database unhealthy")
				}
				fmt.Fprintln(out, "Database healthy")
				return nil
			})
		},
	}
}
