package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"emgpipe/internal/daemon"
	"emgpipe/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show workfolder and conversion status",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := fetchStatus(ctx, cmd)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, resp)
			}
			renderStatus(cmd, resp)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

// fetchStatus prefers the running daemon and falls back to a direct
// reconciliation pass over the workfolder.
func fetchStatus(ctx *commandContext, cmd *cobra.Command) (ipc.StatusResponse, error) {
	if client, err := ctx.dialClient(); err == nil {
		defer client.Close()
		return client.Status()
	}
	var resp ipc.StatusResponse
	err := ctx.withDaemon(func(d *daemon.Daemon) error {
		status, err := d.Status(cmd.Context())
		if err != nil {
			return err
		}
		resp = ipc.StatusFromDaemon(status)
		return nil
	})
	return resp, err
}

func renderStatus(cmd *cobra.Command, resp ipc.StatusResponse) {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)

	fmt.Fprintf(stdout, "Workfolder: %s\n", resp.Workfolder)
	fmt.Fprintf(stdout, "Daemon:     %s\n", runningLabel(resp.Running, resp.PID))
	fmt.Fprintf(stdout, "Progress:   %d/%d exported (%.0f%%)\n",
		resp.Exported, resp.Total, resp.Progress*100)
	if resp.LastError != "" {
		fmt.Fprintf(stdout, "Last error: %s\n", resp.LastError)
	}
	fmt.Fprintln(stdout)

	if len(resp.Units) == 0 {
		fmt.Fprintln(stdout, "No decomposition results found")
		return
	}

	rows := make([][]string, 0, len(resp.Units))
	for _, u := range resp.Units {
		stage := u.Stage
		if colorize {
			stage = stageColor(u.Stage).Sprint(u.Stage)
		}
		inFlight := ""
		if u.InFlight {
			inFlight = "converting"
		}
		rows = append(rows, []string{u.BaseName, stage, inFlight})
	}
	fmt.Fprintln(stdout, renderTable(
		[]string{"Unit", "Stage", "Activity"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft}))
}

func runningLabel(running bool, pid int) string {
	if running {
		return fmt.Sprintf("running (pid %d)", pid)
	}
	return "not running"
}

func stageColor(stage string) text.Colors {
	switch stage {
	case "exported":
		return text.Colors{text.FgGreen}
	case "edited":
		return text.Colors{text.FgCyan}
	case "pending":
		return text.Colors{text.FgYellow}
	default:
		return text.Colors{text.Faint}
	}
}
