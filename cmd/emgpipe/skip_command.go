package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"emgpipe/internal/daemon"
	"emgpipe/internal/ipc"
)

func newSkipCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:       "skip <pre|post>",
		Short:     "Skip one of the two CoVISI quality gates",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"pre", "post"},
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := runSkipGate(ctx, cmd, args[0], reason)
			if err != nil {
				return err
			}
			for _, st := range steps {
				if st.Status == "active" {
					fmt.Fprintf(cmd.OutOrStdout(), "Gate skipped; step %d (%s) is now active\n",
						st.Ordinal, st.Name)
					return nil
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Gate skipped; all steps complete")
			return nil
		},
	}
	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Why the gate is being skipped (recorded in the report)")
	return cmd
}

func runSkipGate(ctx *commandContext, cmd *cobra.Command, gate, reason string) ([]ipc.StepView, error) {
	if client, err := ctx.dialClient(); err == nil {
		defer client.Close()
		resp, err := client.SkipGate(gate, reason)
		return resp.Steps, err
	}
	var steps []ipc.StepView
	err := ctx.withDaemon(func(d *daemon.Daemon) error {
		state, err := d.SkipGate(cmd.Context(), gate, reason)
		if err != nil {
			return err
		}
		steps = ipc.StepViews(state.Steps)
		return nil
	})
	return steps, err
}
