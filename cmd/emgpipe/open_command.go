package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"emgpipe/internal/config"
	"emgpipe/internal/ipc"
	"emgpipe/internal/pipeline"
)

func newOpenCommand() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:         "open <workfolder>",
		Short:       "Reconstruct and show the pipeline state of a workfolder",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			state, err := pipeline.Reconstruct(root)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, ipc.StepsResponse{
					Workfolder:    state.Root,
					Steps:         ipc.StepViews(state.Steps),
					LastCompleted: state.LastCompleted,
				})
			}

			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "Workfolder: %s\n", state.Root)
			rows := make([][]string, 0, len(state.Steps))
			for _, st := range state.Steps {
				note := st.Warning
				if note == "" && st.Skippable {
					note = "skippable"
				}
				rows = append(rows, []string{
					strconv.Itoa(st.Ordinal),
					st.Name,
					string(st.Status),
					strconv.Itoa(st.FileCount),
					note,
				})
			}
			fmt.Fprintln(stdout, renderTable(
				[]string{"#", "Step", "Status", "Files", "Notes"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft}))
			if active := state.ActiveStep(); active != 0 {
				step, _ := state.StepState(active)
				fmt.Fprintf(stdout, "Next: step %d (%s)\n", active, step.Name)
			} else {
				fmt.Fprintln(stdout, "All steps complete")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}
