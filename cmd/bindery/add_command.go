package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"bindery/internal/config"
	"bindery/internal/journal"
	"bindery/internal/store"
)

// newAddCommand registers a deposit notification from a JSON document,
// the way the OJS plugin would announce it. "-" reads from stdin.
func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <notification.json>",
		Short: "Register a journal deposit notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var reader io.Reader
			if args[0] == "-" {
				reader = cmd.InOrStdin()
			} else {
				file, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open notification: %w", err)
				}
				defer file.Close()
				reader = file
			}

			var note journal.Notification
			decoder := json.NewDecoder(reader)
			decoder.DisallowUnknownFields()
			if err := decoder.Decode(&note); err != nil {
				return fmt.Errorf("parse notification: %w", err)
			}

			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				logger, err := ctx.ensureLogger()
				if err != nil {
					return err
				}
				intake := journal.NewIntake(st, logger)
				dep, err := intake.Accept(cmd.Context(), note)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deposit %s registered for journal %s\n", dep.UUID, dep.JournalUUID)
				return nil
			})
		},
	}
}
