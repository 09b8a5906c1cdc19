package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"emgpipe/internal/daemon"
	"emgpipe/internal/ipc"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var exportAll bool

	cmd := &cobra.Command{
		Use:   "export [base ...]",
		Short: "Convert decomposition results into editor containers",
		Long: `Convert decomposition JSON results into MATLAB v7.3 containers for the
editing tool. Without arguments every decomposition result is exported.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if exportAll && len(args) > 0 {
				return fmt.Errorf("--all cannot be combined with base names")
			}
			resp, err := runExport(ctx, cmd, args)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, resp)
			}

			stdout := cmd.OutOrStdout()
			for _, r := range resp.Results {
				if r.Error != "" {
					fmt.Fprintf(stdout, "FAILED  %s: %s\n", r.BaseName, r.Error)
					continue
				}
				fmt.Fprintf(stdout, "wrote   %s\n", r.Output)
			}
			fmt.Fprintf(stdout, "%d exported, %d failed\n", resp.Succeeded, resp.Failed)
			if resp.Failed > 0 {
				return fmt.Errorf("%d export(s) failed", resp.Failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	cmd.Flags().BoolVar(&exportAll, "all", false, "Export every decomposition result")

	cmd.AddCommand(newExportGroupCommand(ctx))
	return cmd
}

func newExportGroupCommand(ctx *commandContext) *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "multigrid <base> <base> [base ...]",
		Short: "Export several decomposition results as one multi-grid container",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, err := runExportGroup(ctx, cmd, group, args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&group, "group", "g", "", "Group name used in the container name")
	_ = cmd.MarkFlagRequired("group")
	return cmd
}

func runExport(ctx *commandContext, cmd *cobra.Command, bases []string) (ipc.ExportResponse, error) {
	if client, err := ctx.dialClient(); err == nil {
		defer client.Close()
		return client.Export(bases)
	}
	var resp ipc.ExportResponse
	err := ctx.withDaemon(func(d *daemon.Daemon) error {
		report, err := d.Export(cmd.Context(), bases)
		if err != nil {
			return err
		}
		resp = ipc.ExportFromReport(report)
		return nil
	})
	return resp, err
}

func runExportGroup(ctx *commandContext, cmd *cobra.Command, label string, bases []string) (string, error) {
	if client, err := ctx.dialClient(); err == nil {
		defer client.Close()
		resp, err := client.ExportGroup(label, bases)
		return resp.Output, err
	}
	var output string
	err := ctx.withDaemon(func(d *daemon.Daemon) error {
		var err error
		output, err = d.ExportGroup(cmd.Context(), label, bases)
		return err
	})
	return output, err
}
