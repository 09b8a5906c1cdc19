package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"emgpipe/internal/bridge"
	"emgpipe/internal/daemon"
	"emgpipe/internal/ipc"
	"emgpipe/internal/workfolder"
)

func newApplyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <edited-file>",
		Short: "Convert one edited container back into a cleaned JSON result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			layout, err := workfolder.Open(cfg.Paths.Workfolder)
			if err != nil {
				return err
			}

			editedPath, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			name := filepath.Base(editedPath)
			base, ok := workfolder.BaseFromEdited(name)
			if !ok {
				return fmt.Errorf("%s is not an edited container (expected *%s)", name, workfolder.EditedSuffix)
			}
			original, err := workfolder.MatchOriginal(layout.Decomposition(), base)
			if err != nil {
				return err
			}
			resultsDir, err := layout.EnsureDir(workfolder.DirResults)
			if err != nil {
				return err
			}
			outJSON := filepath.Join(resultsDir, workfolder.ResultName(base))

			br := bridge.New(bridge.Options{
				GzipLevel: cfg.Bridge.GzipLevel,
				MatLevel:  cfg.Bridge.MatCompressionLevel,
			})
			if err := br.ApplyEdits(original, editedPath, outJSON); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", outJSON)
			return nil
		},
	}
}

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile the workfolder once",
		Long: `Scan the workfolder once: convert every edited container back to a
cleaned JSON result, retire results whose edited container disappeared, and
reclassify every unit. The daemon does this continuously; reconcile is the
one-shot equivalent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := runReconcile(ctx, cmd)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"%d unit(s): %d pending, %d edited, %d exported (%.0f%%)\n",
				resp.Total, resp.Pending, resp.Edited, resp.Exported, resp.Progress*100)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

func runReconcile(ctx *commandContext, cmd *cobra.Command) (ipc.ReconcileResponse, error) {
	if client, err := ctx.dialClient(); err == nil {
		defer client.Close()
		return client.Reconcile()
	}
	var resp ipc.ReconcileResponse
	err := ctx.withDaemon(func(d *daemon.Daemon) error {
		snapshot, err := d.Reconcile(cmd.Context())
		if err != nil {
			return err
		}
		resp = ipc.ReconcileResponse{
			Total:    snapshot.Total,
			Pending:  snapshot.Pending,
			Edited:   snapshot.Edited,
			Exported: snapshot.Exported,
			Progress: snapshot.Progress(),
		}
		return nil
	})
	return resp, err
}
