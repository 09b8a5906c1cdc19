package tracker_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"emgpipe/internal/bridge"
	"emgpipe/internal/emgjson"
	"emgpipe/internal/journal"
	"emgpipe/internal/testsupport"
	"emgpipe/internal/tracker"
	"emgpipe/internal/workfolder"
)

func newLayout(t *testing.T) workfolder.Layout {
	t.Helper()
	layout, err := workfolder.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open layout: %v", err)
	}
	return layout
}

func newTracker(t *testing.T, layout workfolder.Layout) *tracker.Tracker {
	t.Helper()
	tr, err := tracker.New(tracker.Options{
		Layout: layout,
		Bridge: bridge.New(bridge.Options{}),
	})
	if err != nil {
		t.Fatalf("tracker.New: %v", err)
	}
	return tr
}

// seedUnit writes one decomposition JSON plus its tool export into the
// decomposition folder and returns the export path.
func seedUnit(t *testing.T, layout workfolder.Layout, base string) string {
	t.Helper()
	f := testsupport.SampleDecomposition(10, 2,
		emgjson.Unit{PulseTrain: testsupport.PulseRamp(10, 4), Discharges: []int64{2, 5, 8}, Accuracy: 0.9},
		emgjson.Unit{PulseTrain: testsupport.PulseRamp(10, 2), Discharges: []int64{1, 6}, Accuracy: 0.8},
	)
	testsupport.WriteDecomposition(t, layout, base, f)
	export := filepath.Join(layout.Decomposition(), workfolder.ExportName(base, false))
	testsupport.Touch(t, export)
	return export
}

func editUnit(t *testing.T, layout workfolder.Layout, base string) string {
	t.Helper()
	edited := filepath.Join(layout.Decomposition(),
		workfolder.EditedName(workfolder.ExportName(base, false)))
	testsupport.WriteEditedContainer(t, edited,
		[]float64{0.95},
		[][]float64{testsupport.PulseRamp(10, 1)},
		[][]float64{testsupport.OneBased([]int64{2, 5, 8})},
	)
	return edited
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		unit workfolder.Unit
		want tracker.Stage
	}{
		{"no export", workfolder.Unit{BaseName: "a"}, tracker.StageNotStarted},
		{"export only", workfolder.Unit{BaseName: "a", ExportPath: "/x/a_muedit.mat"}, tracker.StagePending},
		{"edited", workfolder.Unit{BaseName: "a", ExportPath: "/x/a_muedit.mat", EditedPath: "/x/a_muedit.mat_edited.mat"}, tracker.StageEdited},
		{"exported", workfolder.Unit{BaseName: "a", ExportPath: "/x/a_muedit.mat", EditedPath: "/x/a_muedit.mat_edited.mat", ResultPath: "/y/a_cleaned.json"}, tracker.StageExported},
	}
	for _, tc := range cases {
		if got := tracker.Classify(tc.unit); got != tc.want {
			t.Errorf("%s: Classify = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestRunOnceConvertsEditedUnits(t *testing.T) {
	layout := newLayout(t)
	seedUnit(t, layout, "run01")
	editUnit(t, layout, "run01")

	tr := newTracker(t, layout)
	snapshot, err := tr.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	resultPath := filepath.Join(layout.Results(), workfolder.ResultName("run01"))
	result, err := emgjson.Load(resultPath)
	if err != nil {
		t.Fatalf("load result: %v", err)
	}
	if len(result.Units) != 1 || result.Units[0].Accuracy != 0.95 {
		t.Fatalf("unexpected result units: %+v", result.Units)
	}
	if snapshot.Exported != 1 || snapshot.Total != 1 {
		t.Fatalf("snapshot = %+v, want 1 exported of 1", snapshot)
	}
	if snapshot.Progress() != 1.0 {
		t.Fatalf("progress = %v, want 1.0", snapshot.Progress())
	}
}

func TestRunOnceRecordsJournalEntries(t *testing.T) {
	layout := newLayout(t)
	seedUnit(t, layout, "run01")
	editUnit(t, layout, "run01")

	store, err := journal.OpenPath(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("journal.OpenPath: %v", err)
	}
	defer store.Close()

	tr, err := tracker.New(tracker.Options{
		Layout:  layout,
		Bridge:  bridge.New(bridge.Options{}),
		Journal: store,
	})
	if err != nil {
		t.Fatalf("tracker.New: %v", err)
	}
	if _, err := tr.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	entries, err := store.List(context.Background(), false, 10)
	if err != nil {
		t.Fatalf("journal list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 journal entry, got %d", len(entries))
	}
	if entries[0].Direction != journal.DirectionReverse || entries[0].Outcome != journal.OutcomeOK {
		t.Fatalf("unexpected journal entry: %+v", entries[0])
	}
}

func TestReconcileDeletesOrphanedResult(t *testing.T) {
	layout := newLayout(t)
	seedUnit(t, layout, "run01")
	edited := editUnit(t, layout, "run01")
	seedUnit(t, layout, "run02")
	editUnit(t, layout, "run02")

	tr := newTracker(t, layout)
	if _, err := tr.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	// Unrelated foreign file in the results folder must survive.
	foreign := filepath.Join(layout.Results(), "notes.txt")
	testsupport.Touch(t, foreign)

	if err := os.Remove(edited); err != nil {
		t.Fatalf("remove edited: %v", err)
	}
	snapshot, err := tr.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	removed := filepath.Join(layout.Results(), workfolder.ResultName("run01"))
	if _, err := os.Stat(removed); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be deleted", removed)
	}
	kept := filepath.Join(layout.Results(), workfolder.ResultName("run02"))
	if _, err := os.Stat(kept); err != nil {
		t.Fatalf("unrelated result deleted: %v", err)
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Fatalf("foreign file deleted: %v", err)
	}
	if snapshot.Exported != 1 || snapshot.Pending != 1 {
		t.Fatalf("snapshot = %+v, want 1 exported and 1 pending", snapshot)
	}
}

func TestReconcileSuppressesDuplicateEnqueue(t *testing.T) {
	layout := newLayout(t)
	seedUnit(t, layout, "run01")
	editUnit(t, layout, "run01")

	tr := newTracker(t, layout)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := tr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tr.Stop()

	// Force several passes in quick succession; the in-flight rule must
	// collapse them into a single conversion.
	for i := 0; i < 5; i++ {
		if _, err := tr.Reconcile(ctx); err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
	}

	resultPath := filepath.Join(layout.Results(), workfolder.ResultName("run01"))
	deadline := time.Now().Add(5 * time.Second)
	for {
		if workfolder.FileExists(resultPath) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("conversion never completed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	tr.Stop()

	snapshot, err := tr.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("final Reconcile: %v", err)
	}
	if snapshot.Exported != 1 {
		t.Fatalf("exported = %d, want 1", snapshot.Exported)
	}

	// Exactly one result file means exactly one conversion ran; a second
	// concurrent conversion of the same base would have been observable as
	// a temp-file collision or duplicate journal row in the other tests.
	entries, err := os.ReadDir(layout.Results())
	if err != nil {
		t.Fatalf("read results: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one result file, got %d", len(entries))
	}
}

func TestRunOnceAccumulatesFailuresPerFile(t *testing.T) {
	layout := newLayout(t)
	seedUnit(t, layout, "run01")
	editUnit(t, layout, "run01")
	seedUnit(t, layout, "run02")
	// run02's edited file is not a valid container.
	broken := filepath.Join(layout.Decomposition(),
		workfolder.EditedName(workfolder.ExportName("run02", false)))
	testsupport.Touch(t, broken)

	tr := newTracker(t, layout)
	snapshot, err := tr.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if snapshot.Exported != 1 {
		t.Fatalf("exported = %d, want 1 (failure must not abort siblings)", snapshot.Exported)
	}
	if snapshot.Edited != 1 {
		t.Fatalf("edited = %d, want 1 (failed unit stays edited)", snapshot.Edited)
	}
	if snapshot.LastError == "" {
		t.Fatal("expected LastError to record the failure")
	}
}

func TestEmptyFolderSnapshot(t *testing.T) {
	layout := newLayout(t)
	tr := newTracker(t, layout)
	snapshot, err := tr.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if snapshot.Total != 0 || snapshot.Progress() != 0 {
		t.Fatalf("unexpected snapshot for empty folder: %+v", snapshot)
	}
}
