package tracker

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"emgpipe/internal/journal"
	"emgpipe/internal/logging"
	"emgpipe/internal/services"
	"emgpipe/internal/workfolder"
)

// convert performs one reverse conversion: resolve the original JSON the
// edited container belongs to, apply the edits into the results folder, and
// record the outcome. The in-flight mark for the base name is released at
// the end regardless of outcome.
func (t *Tracker) convert(tk task) {
	defer t.clearInFlight(tk.unit.BaseName)

	start := time.Now()
	err := t.convertUnit(tk.unit)
	duration := time.Since(start)

	outcome := journal.OutcomeOK
	errorText := ""
	if err != nil {
		outcome = journal.OutcomeFailed
		errorText = err.Error()
		t.logger.Error("reverse conversion failed",
			logging.String(logging.FieldBaseName, tk.unit.BaseName),
			logging.String(logging.FieldCorrelationID, tk.requestID),
			logging.String("failure_kind", string(services.Classify(err))),
			logging.Error(err))
		t.noteError(err)
	} else {
		t.logger.Info("reverse conversion complete",
			logging.String(logging.FieldBaseName, tk.unit.BaseName),
			logging.String(logging.FieldCorrelationID, tk.requestID),
			logging.Duration("duration", duration))
	}

	if t.journal != nil {
		if _, jerr := t.journal.Record(context.Background(), journal.Entry{
			Workfolder: t.layout.Root,
			BaseName:   tk.unit.BaseName,
			Direction:  journal.DirectionReverse,
			Outcome:    outcome,
			Duration:   duration,
			ErrorText:  errorText,
			RequestID:  tk.requestID,
		}); jerr != nil {
			t.logger.Warn("journal write failed", logging.Error(jerr))
		}
	}

	if t.notifier != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err != nil {
			if nerr := t.notifier.NotifyError(ctx, err, "reverse conversion of "+tk.unit.BaseName); nerr != nil {
				t.logger.Warn("error notification failed", logging.Error(nerr))
			}
		} else if nerr := t.notifier.NotifyExportCompleted(ctx, tk.unit.BaseName); nerr != nil {
			t.logger.Warn("export notification failed", logging.Error(nerr))
		}
	}
}

func (t *Tracker) convertUnit(u workfolder.Unit) error {
	original := u.OriginalJSON
	if original == "" {
		matched, err := workfolder.MatchOriginal(t.layout.Decomposition(), u.BaseName)
		if err != nil {
			return err
		}
		original = matched
	}
	resultsDir, err := t.layout.EnsureDir(workfolder.DirResults)
	if err != nil {
		return err
	}
	outJSON := filepath.Join(resultsDir, workfolder.ResultName(u.BaseName))
	return t.bridge.ApplyEdits(original, u.EditedPath, outJSON)
}

func (t *Tracker) noteError(err error) {
	t.mu.Lock()
	t.snapshot.LastError = err.Error()
	t.mu.Unlock()
}

// RunOnce performs a single synchronous pass for callers without the loop
// running: orphaned results are retired and every edited container is
// converted inline before the final snapshot is taken. When the loop is
// running this delegates to Reconcile so the worker pool keeps ownership of
// conversions.
func (t *Tracker) RunOnce(ctx context.Context) (Snapshot, error) {
	if t.Running() {
		return t.Reconcile(ctx)
	}

	units, err := workfolder.ScanUnits(t.layout)
	if err != nil {
		return Snapshot{}, err
	}
	for i := range units {
		t.retireOrphan(&units[i])
	}
	for _, u := range units {
		if Classify(u) != StageEdited {
			continue
		}
		t.mu.Lock()
		claimed := !t.inFlight[u.BaseName]
		if claimed {
			t.inFlight[u.BaseName] = true
		}
		t.mu.Unlock()
		if !claimed {
			continue
		}
		t.convert(task{unit: u, requestID: uuid.NewString()})
	}
	return t.Reconcile(ctx)
}
