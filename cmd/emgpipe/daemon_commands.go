package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"emgpipe/internal/daemon"
	"emgpipe/internal/ipc"
)

const daemonStartTimeout = 10 * time.Second

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Control the background daemon",
	}
	cmd.AddCommand(newDaemonStartCommand(ctx))
	cmd.AddCommand(newDaemonStopCommand(ctx))
	cmd.AddCommand(newDaemonStatusCommand(ctx))
	return cmd
}

func newDaemonStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Launch emgpiped in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			if client, err := ipc.Dial(ctx.socketPath()); err == nil {
				client.Close()
				fmt.Fprintln(stdout, "Daemon already running")
				return nil
			}

			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			launchArgs := []string{}
			if ctx.configFlag != nil {
				if cfgPath := strings.TrimSpace(*ctx.configFlag); cfgPath != "" {
					launchArgs = append(launchArgs, "--config", cfgPath)
				}
			}
			launch := exec.Command(exe, launchArgs...)
			launch.Stdout = nil
			launch.Stderr = nil
			if err := launch.Start(); err != nil {
				return fmt.Errorf("launch %s: %w", exe, err)
			}
			if err := launch.Process.Release(); err != nil {
				return fmt.Errorf("detach daemon process: %w", err)
			}
			fmt.Fprintln(stdout, "Daemon not running, launching...")

			deadline := time.Now().Add(daemonStartTimeout)
			for time.Now().Before(deadline) {
				if client, err := ipc.Dial(ctx.socketPath()); err == nil {
					client.Close()
					fmt.Fprintln(stdout, "Daemon started")
					return nil
				}
				time.Sleep(200 * time.Millisecond)
			}
			return fmt.Errorf("daemon did not come up within %s", daemonStartTimeout)
		},
	}
}

func newDaemonStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop a running emgpiped",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.dialClient()
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				return nil
			}
			defer client.Close()
			resp, err := client.Stop()
			if err != nil {
				return err
			}
			if resp.Stopped {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopped")
			}
			return nil
		},
	}
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon process status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			client, err := ctx.dialClient()
			if err != nil {
				if jsonOut {
					return writeJSON(cmd, map[string]any{"running": false})
				}
				fmt.Fprintln(stdout, "Daemon:  not running")
				return nil
			}
			defer client.Close()
			resp, err := client.Status()
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, resp)
			}
			fmt.Fprintf(stdout, "Daemon:     %s\n", runningLabel(resp.Running, resp.PID))
			if !resp.StartedAt.IsZero() {
				fmt.Fprintf(stdout, "Started:    %s\n", resp.StartedAt.Local().Format(time.DateTime))
			}
			fmt.Fprintf(stdout, "Workfolder: %s\n", resp.Workfolder)
			fmt.Fprintf(stdout, "Socket:     %s\n", ctx.socketPath())
			fmt.Fprintf(stdout, "Lock:       %s\n", resp.LockPath)
			fmt.Fprintf(stdout, "Journal:    %s (%d ok, %d failed)\n",
				resp.JournalPath, resp.JournalOK, resp.JournalFails)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	candidate := filepath.Join(filepath.Dir(exe), "emgpiped")
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}
	if path, err := exec.LookPath("emgpiped"); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("emgpiped binary not found next to %s or on PATH", exe)
}

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			if client, err := ctx.dialClient(); err == nil {
				defer client.Close()
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				if !resp.Sent {
					return fmt.Errorf("notification not sent: %s", resp.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			}
			return ctx.withDaemon(func(d *daemon.Daemon) error {
				if err := d.TestNotification(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
				return nil
			})
		},
	}
}
