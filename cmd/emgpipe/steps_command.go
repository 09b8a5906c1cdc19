package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"emgpipe/internal/daemon"
	"emgpipe/internal/ipc"
)

func newStepsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "steps",
		Short: "Show the twelve workflow steps reconstructed from the workfolder",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := fetchSteps(ctx, cmd)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, resp)
			}

			rows := make([][]string, 0, len(resp.Steps))
			for _, st := range resp.Steps {
				note := st.Warning
				if note == "" && st.Skippable {
					note = "skippable"
				}
				rows = append(rows, []string{
					strconv.Itoa(st.Ordinal),
					st.Name,
					st.Status,
					strconv.Itoa(st.FileCount),
					note,
				})
			}
			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "Workfolder: %s\n", resp.Workfolder)
			fmt.Fprintln(stdout, renderTable(
				[]string{"#", "Step", "Status", "Files", "Notes"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

func fetchSteps(ctx *commandContext, cmd *cobra.Command) (ipc.StepsResponse, error) {
	if client, err := ctx.dialClient(); err == nil {
		defer client.Close()
		return client.Steps()
	}
	var resp ipc.StepsResponse
	err := ctx.withDaemon(func(d *daemon.Daemon) error {
		state, err := d.Steps(cmd.Context())
		if err != nil {
			return err
		}
		resp.Workfolder = state.Root
		resp.Steps = ipc.StepViews(state.Steps)
		resp.LastCompleted = state.LastCompleted
		return nil
	})
	return resp, err
}
