package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"emgpipe/internal/daemon"
	"emgpipe/internal/ipc"
)

func newJournalCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var onlyFailed bool
	var limit int

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List recent conversion attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := fetchJournal(ctx, cmd, onlyFailed, limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Journal is empty")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				errText := e.ErrorText
				if len(errText) > 60 {
					errText = errText[:57] + "..."
				}
				rows = append(rows, []string{
					strconv.FormatInt(e.ID, 10),
					e.CreatedAt.Local().Format(time.DateTime),
					e.BaseName,
					e.Direction,
					e.Outcome,
					fmt.Sprintf("%dms", e.DurationMS),
					errText,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "When", "Unit", "Direction", "Outcome", "Took", "Error"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	cmd.Flags().BoolVar(&onlyFailed, "failed", false, "Show failed conversions only")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum rows to show (default 100)")
	return cmd
}

func fetchJournal(ctx *commandContext, cmd *cobra.Command, onlyFailed bool, limit int) ([]ipc.JournalEntryView, error) {
	if client, err := ctx.dialClient(); err == nil {
		defer client.Close()
		resp, err := client.Journal(onlyFailed, limit)
		return resp.Entries, err
	}
	var views []ipc.JournalEntryView
	err := ctx.withDaemon(func(d *daemon.Daemon) error {
		entries, err := d.JournalEntries(cmd.Context(), onlyFailed, limit)
		if err != nil {
			return err
		}
		views = ipc.JournalViews(entries)
		return nil
	})
	return views, err
}
