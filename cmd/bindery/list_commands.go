package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bindery/internal/config"
	"bindery/internal/deposit"
	"bindery/internal/store"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var stateFlags []string
	var journalFlag string
	var stats bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deposits, optionally filtered by state or journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				if stats {
					return printStats(cmd, st)
				}

				states := make([]deposit.State, 0, len(stateFlags))
				for _, raw := range stateFlags {
					state, ok := deposit.ParseState(raw)
					if !ok {
						return fmt.Errorf("unknown state %q", raw)
					}
					states = append(states, state)
				}

				var journalUUID string
				if journal := strings.TrimSpace(journalFlag); journal != "" {
					normalized, err := deposit.NormalizeUUID(journal)
					if err != nil {
						return err
					}
					journalUUID = normalized
				}

				var deposits []*deposit.Deposit
				var err error
				switch {
				case journalUUID != "" && len(states) == 1:
					deposits, err = st.DepositsByStateAndJournal(cmd.Context(), states[0], journalUUID)
				default:
					deposits, err = st.ListDeposits(cmd.Context(), states...)
					if err == nil && journalUUID != "" {
						filtered := deposits[:0]
						for _, dep := range deposits {
							if dep.JournalUUID == journalUUID {
								filtered = append(filtered, dep)
							}
						}
						deposits = filtered
					}
				}
				if err != nil {
					return err
				}
				if len(deposits) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No deposits found")
					return nil
				}

				rows := make([][]string, 0, len(deposits))
				for _, dep := range deposits {
					rows = append(rows, []string{
						dep.UUID,
						dep.JournalUUID,
						string(dep.State),
						fmt.Sprintf("%d", dep.Attempts),
						fmt.Sprintf("%d", dep.Size),
						dep.UpdatedAt.Format("2006-01-02 15:04"),
					})
				}
				table := renderTable(
					[]string{"Deposit", "Journal", "State", "Attempts", "Size", "Updated"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&stateFlags, "state", nil, "Filter by deposit state (repeatable)")
	cmd.Flags().StringVar(&journalFlag, "journal", "", "Filter by journal UUID")
	cmd.Flags().BoolVar(&stats, "stats", false, "Show per-state counts instead of rows")
	return cmd
}

func printStats(cmd *cobra.Command, st *store.Store) error {
	stats, err := st.DepositStats(cmd.Context())
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No deposits found")
		return nil
	}

	rows := make([][]string, 0, len(stats))
	for _, state := range deposit.AllStates() {
		count, ok := stats[state]
		if !ok {
			continue
		}
		rows = append(rows, []string{string(state), fmt.Sprintf("%d", count)})
	}
	table := renderTable([]string{"State", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
	fmt.Fprintln(cmd.OutOrStdout(), table)
	return nil
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var showLog bool

	cmd := &cobra.Command{
		Use:   "show <uuid>",
		Short: "Show one deposit in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				normalized, err := deposit.NormalizeUUID(args[0])
				if err != nil {
					return err
				}
				dep, err := st.DepositByUUID(cmd.Context(), normalized)
				if err != nil {
					return err
				}
				if dep == nil {
					return fmt.Errorf("deposit %s not found", normalized)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Deposit:     %s\n", dep.UUID)
				fmt.Fprintf(out, "Journal:     %s\n", dep.JournalUUID)
				fmt.Fprintf(out, "State:       %s\n", dep.State)
				if dep.FailedState != "" {
					fmt.Fprintf(out, "Failed in:   %s\n", dep.FailedState)
				}
				fmt.Fprintf(out, "Attempts:    %d\n", dep.Attempts)
				pubDate := ""
				if !dep.PubDate.IsZero() {
					pubDate = dep.PubDate.Format("2006-01-02")
				}
				fmt.Fprintf(out, "Issue:       volume %s, issue %s (%s)\n", dep.Volume, dep.Issue, pubDate)
				fmt.Fprintf(out, "Source:      %s\n", dep.SourceURL)
				fmt.Fprintf(out, "Size:        %d bytes (%s %s)\n", dep.Size, dep.ChecksumType, dep.ChecksumValue)
				if dep.PackageSize > 0 {
					fmt.Fprintf(out, "Package:     %d bytes (%s %s)\n", dep.PackageSize, dep.PackageChecksumType, dep.PackageChecksumValue)
				}
				if dep.HasContainer() {
					fmt.Fprintf(out, "Container:   %d\n", dep.ContainerID)
				}
				if dep.DepositReceipt != "" {
					fmt.Fprintf(out, "Receipt:     %s\n", dep.DepositReceipt)
				}
				if dep.PLNState != "" {
					fmt.Fprintf(out, "PLN state:   %s\n", dep.PLNState)
				}
				if dep.DepositDate != nil {
					fmt.Fprintf(out, "Deposited:   %s\n", dep.DepositDate.Format("2006-01-02 15:04:05"))
				}
				if len(dep.ErrorLog) > 0 {
					fmt.Fprintln(out, "Errors:")
					for _, entry := range dep.ErrorLog {
						fmt.Fprintf(out, "  - %s\n", entry)
					}
				}
				if showLog && dep.ProcessingLog != "" {
					fmt.Fprintln(out, "Processing log:")
					for _, line := range strings.Split(dep.ProcessingLog, "\n") {
						fmt.Fprintf(out, "  %s\n", line)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showLog, "log", false, "Include the full processing log")
	return cmd
}
