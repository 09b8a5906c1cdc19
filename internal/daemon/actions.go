package daemon

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"emgpipe/internal/bridge"
	"emgpipe/internal/journal"
	"emgpipe/internal/logging"
	"emgpipe/internal/pipeline"
	"emgpipe/internal/services"
	"emgpipe/internal/tracker"
	"emgpipe/internal/workfolder"
)

// Reconcile forces a reconciliation pass and returns the fresh snapshot.
func (d *Daemon) Reconcile(ctx context.Context) (tracker.Snapshot, error) {
	return d.tracker.RunOnce(ctx)
}

// Steps reconstructs the pipeline state from the folder tree.
func (d *Daemon) Steps(context.Context) (*pipeline.State, error) {
	return pipeline.Reconstruct(d.layout.Root)
}

// Export converts decomposition JSONs into editor containers. With no base
// names every decomposition JSON in the folder is exported.
func (d *Daemon) Export(ctx context.Context, bases []string) (bridge.BatchReport, error) {
	paths, err := d.resolveExportInputs(bases)
	if err != nil {
		return bridge.BatchReport{}, err
	}
	report := d.bridge.ExportBatch(paths)
	d.recordBatch(ctx, journal.DirectionForward, report)
	if d.notifier != nil && len(report.Results) > 1 {
		var total time.Duration
		for _, r := range report.Results {
			total += r.Duration
		}
		if err := d.notifier.NotifyBatchCompleted(ctx, report.Succeeded, report.Failed, total); err != nil {
			d.logger.Warn("batch notification failed", logging.Error(err))
		}
	}
	return report, nil
}

// ExportGroup exports a named multi-grid group, persisting the grouping so
// reconstruction and reverse matching can see it.
func (d *Daemon) ExportGroup(ctx context.Context, label string, bases []string) (string, error) {
	if strings.TrimSpace(label) == "" {
		return "", services.Wrap(services.ErrValidation, "daemon", "export group", "group label required", nil)
	}
	if len(bases) < 2 {
		return "", services.Wrap(services.ErrValidation, "daemon", "export group",
			"a multi-grid group needs at least two members", nil)
	}
	paths, err := d.resolveExportInputs(bases)
	if err != nil {
		return "", err
	}

	dir := d.layout.Decomposition()
	groupings, err := workfolder.LoadGroupings(dir)
	if err != nil {
		return "", err
	}
	members := make([]string, len(paths))
	for i, p := range paths {
		members[i] = filepath.Base(p)
	}
	groupings[label] = members
	if err := groupings.Save(dir); err != nil {
		return "", fmt.Errorf("save groupings: %w", err)
	}

	start := time.Now()
	output, err := d.bridge.ExportGroup(label, paths, dir)
	entry := journal.Entry{
		Workfolder: d.layout.Root,
		BaseName:   workfolder.SanitizeGroupName(label),
		Direction:  journal.DirectionMultiGrid,
		Outcome:    journal.OutcomeOK,
		Duration:   time.Since(start),
		RequestID:  uuid.NewString(),
	}
	if err != nil {
		entry.Outcome = journal.OutcomeFailed
		entry.ErrorText = err.Error()
	}
	if _, jerr := d.journal.Record(ctx, entry); jerr != nil {
		d.logger.Warn("journal write failed", logging.Error(jerr))
	}
	return output, err
}

// SkipGate records an explicit skip decision for one of the quality gates.
// Gate is "pre" or "post".
func (d *Daemon) SkipGate(_ context.Context, gate, reason string) (*pipeline.State, error) {
	ordinal, err := gateOrdinal(gate)
	if err != nil {
		return nil, err
	}
	machine, err := pipeline.NewMachine(d.layout.Root, pipeline.Options{
		CovisiThreshold: d.cfg.Quality.CovisiThreshold,
		Logger:          d.logger,
	})
	if err != nil {
		return nil, err
	}
	return machine.Skip(ordinal, reason)
}

// JournalEntries lists recent conversion attempts.
func (d *Daemon) JournalEntries(ctx context.Context, onlyFailed bool, limit int) ([]journal.Entry, error) {
	return d.journal.List(ctx, onlyFailed, limit)
}

// TestNotification sends a test push notification.
func (d *Daemon) TestNotification(ctx context.Context) error {
	return d.notifier.TestNotification(ctx)
}

func gateOrdinal(gate string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(gate)) {
	case "pre", "prefilter":
		return pipeline.GatePreFilter, nil
	case "post", "postvalidation":
		return pipeline.GatePostValidation, nil
	}
	return 0, services.Wrap(services.ErrValidation, "daemon", "skip gate",
		fmt.Sprintf("unknown gate %q (want pre or post)", gate), nil)
}

// resolveExportInputs maps base names to decomposition JSON paths. Empty
// input selects every decomposition JSON in the folder.
func (d *Daemon) resolveExportInputs(bases []string) ([]string, error) {
	dir := d.layout.Decomposition()
	if len(bases) == 0 {
		names, err := workfolder.ListArtifacts(dir, workfolder.IsDecompositionJSON)
		if err != nil {
			return nil, err
		}
		if len(names) == 0 {
			return nil, services.Wrap(services.ErrNotFound, "daemon", "export",
				"no decomposition results to export", nil)
		}
		paths := make([]string, len(names))
		for i, name := range names {
			paths[i] = filepath.Join(dir, name)
		}
		return paths, nil
	}

	paths := make([]string, 0, len(bases))
	for _, base := range bases {
		base = strings.TrimSuffix(strings.TrimSpace(base), ".json")
		path := filepath.Join(dir, base+".json")
		if !workfolder.FileExists(path) {
			return nil, services.Wrap(services.ErrNotFound, "daemon", "export",
				fmt.Sprintf("no decomposition result named %s", base), nil)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// recordBatch writes one journal row per batch result.
func (d *Daemon) recordBatch(ctx context.Context, direction string, report bridge.BatchReport) {
	for _, result := range report.Results {
		entry := journal.Entry{
			Workfolder: d.layout.Root,
			BaseName:   result.BaseName,
			Direction:  direction,
			Outcome:    journal.OutcomeOK,
			Duration:   result.Duration,
			RequestID:  uuid.NewString(),
		}
		if result.Err != nil {
			entry.Outcome = journal.OutcomeFailed
			entry.ErrorText = result.Err.Error()
		}
		if _, err := d.journal.Record(ctx, entry); err != nil {
			d.logger.Warn("journal write failed", logging.Error(err))
		}
	}
}
