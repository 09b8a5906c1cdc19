package tracker

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"emgpipe/internal/logging"
	"emgpipe/internal/workfolder"
)

// Reconcile runs one reconciliation pass: re-scan the folder tree, delete
// results orphaned by removed edits, enqueue reverse conversions for newly
// edited containers, and publish a fresh snapshot. Safe to call directly for
// a forced pass while the loop is running.
func (t *Tracker) Reconcile(ctx context.Context) (Snapshot, error) {
	units, err := workfolder.ScanUnits(t.layout)
	if err != nil {
		return Snapshot{}, err
	}

	for i := range units {
		if removed := t.retireOrphan(&units[i]); removed {
			t.logger.Info("removed orphaned result",
				logging.String(logging.FieldBaseName, units[i].BaseName))
		}
	}

	snapshot := Snapshot{ReconciledAt: time.Now().UTC()}
	t.mu.Lock()
	stages := make(map[string]Stage, len(units))
	for _, u := range units {
		stage := Classify(u)
		stages[u.BaseName] = stage
		status := UnitStatus{BaseName: u.BaseName, Stage: stage, InFlight: t.inFlight[u.BaseName]}
		snapshot.Units = append(snapshot.Units, status)
		snapshot.Total++
		switch stage {
		case StagePending:
			snapshot.Pending++
		case StageEdited:
			snapshot.Edited++
		case StageExported:
			snapshot.Exported++
		}
		if status.InFlight {
			snapshot.InFlight++
		}
		if prev, seen := t.stages[u.BaseName]; seen && prev != stage {
			t.logger.Debug("unit stage changed",
				logging.String(logging.FieldBaseName, u.BaseName),
				logging.String("from", string(prev)),
				logging.String("to", string(stage)))
		}
	}
	prevError := t.snapshot.LastError
	t.stages = stages
	t.mu.Unlock()

	for _, u := range units {
		if Classify(u) == StageEdited {
			t.tryEnqueue(u)
		}
	}

	snapshot.LastError = prevError
	t.mu.Lock()
	snapshot.InFlight = len(t.inFlight)
	t.snapshot = snapshot
	allExported := snapshot.Total > 0 && snapshot.Exported == snapshot.Total
	notify := allExported && !t.notifiedDone
	t.notifiedDone = allExported
	t.mu.Unlock()

	if notify && t.notifier != nil {
		if err := t.notifier.NotifyAllExported(ctx, snapshot.Total); err != nil {
			t.logger.Warn("completion notification failed", logging.Error(err))
		}
	}
	return snapshot, nil
}

// retireOrphan upholds the bridge consistency invariant: a result whose
// edited counterpart disappeared is deleted. Only the managed cleaned-result
// file is touched; the unit record is updated in place so classification
// reflects the deletion.
func (t *Tracker) retireOrphan(u *workfolder.Unit) bool {
	if u.HasEdited() || !u.HasResult() {
		return false
	}
	if !workfolder.IsResult(filepath.Base(u.ResultPath)) {
		return false
	}
	if err := os.Remove(u.ResultPath); err != nil && !os.IsNotExist(err) {
		t.logger.Warn("cannot remove orphaned result",
			logging.String(logging.FieldBaseName, u.BaseName),
			logging.Error(err))
		return false
	}
	u.ResultPath = ""
	return true
}

// tryEnqueue queues one reverse conversion unless a task for the same base
// name is already in flight or the queue is full. A full queue is not an
// error; the next cycle re-enqueues whatever is still edited.
func (t *Tracker) tryEnqueue(u workfolder.Unit) {
	t.mu.Lock()
	if !t.running || t.inFlight[u.BaseName] {
		t.mu.Unlock()
		return
	}
	t.inFlight[u.BaseName] = true
	t.mu.Unlock()

	tk := task{unit: u, requestID: uuid.NewString()}
	select {
	case t.tasks <- tk:
		t.logger.Debug("conversion enqueued",
			logging.String(logging.FieldBaseName, u.BaseName),
			logging.String(logging.FieldCorrelationID, tk.requestID))
	default:
		t.clearInFlight(u.BaseName)
	}
}

func (t *Tracker) clearInFlight(base string) {
	t.mu.Lock()
	delete(t.inFlight, base)
	t.mu.Unlock()
}
