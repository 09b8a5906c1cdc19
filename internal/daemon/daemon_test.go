package daemon_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"emgpipe/internal/daemon"
	"emgpipe/internal/emgjson"
	"emgpipe/internal/journal"
	"emgpipe/internal/pipeline"
	"emgpipe/internal/services"
	"emgpipe/internal/testsupport"
	"emgpipe/internal/workfolder"
)

func newTestDaemon(t *testing.T) (*daemon.Daemon, workfolder.Layout) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store, err := journal.Open(cfg)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	d, err := daemon.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	layout, err := workfolder.Open(cfg.Paths.Workfolder)
	if err != nil {
		t.Fatalf("open workfolder: %v", err)
	}
	return d, layout
}

func sampleUnit() emgjson.Unit {
	return emgjson.Unit{
		PulseTrain: testsupport.PulseRamp(64, 12),
		Discharges: []int64{5, 20, 40},
		Accuracy:   0.92,
	}
}

func TestNewRequiresWorkfolder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.Workfolder = ""
	store, err := journal.Open(cfg)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer store.Close()

	if _, err := daemon.New(cfg, store, nil); err == nil {
		t.Fatal("expected error without a workfolder")
	}
}

func TestStatusReflectsWorkfolder(t *testing.T) {
	d, layout := newTestDaemon(t)

	status, err := d.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Running {
		t.Fatal("daemon should not report running before Start")
	}
	if status.Workfolder != layout.Root {
		t.Fatalf("workfolder = %q, want %q", status.Workfolder, layout.Root)
	}
	if status.Snapshot.Total != 0 {
		t.Fatalf("expected empty snapshot, got %d units", status.Snapshot.Total)
	}
}

func TestExportAllAndJournal(t *testing.T) {
	d, layout := newTestDaemon(t)
	ctx := context.Background()

	testsupport.WriteDecomposition(t, layout, "trial01",
		testsupport.SampleDecomposition(64, 4, sampleUnit()))
	testsupport.WriteDecomposition(t, layout, "trial02",
		testsupport.SampleDecomposition(64, 4, sampleUnit()))

	report, err := d.Export(ctx, nil)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if report.Succeeded != 2 || report.Failed != 0 {
		t.Fatalf("report = %d/%d, want 2/0", report.Succeeded, report.Failed)
	}
	for _, base := range []string{"trial01", "trial02"} {
		path := filepath.Join(layout.Decomposition(), workfolder.ExportName(base, false))
		if !workfolder.FileExists(path) {
			t.Fatalf("missing export %s", path)
		}
	}

	entries, err := d.JournalEntries(ctx, false, 0)
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("journal rows = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Direction != journal.DirectionForward {
			t.Fatalf("direction = %q, want forward", e.Direction)
		}
		if e.RequestID == "" {
			t.Fatal("journal row missing request id")
		}
	}
}

func TestExportUnknownBase(t *testing.T) {
	d, _ := newTestDaemon(t)

	_, err := d.Export(context.Background(), []string{"missing"})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v, want not-found", err)
	}
}

func TestExportEmptyFolder(t *testing.T) {
	d, _ := newTestDaemon(t)

	_, err := d.Export(context.Background(), nil)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v, want not-found", err)
	}
}

func TestExportGroupValidation(t *testing.T) {
	d, layout := newTestDaemon(t)
	ctx := context.Background()

	testsupport.WriteDecomposition(t, layout, "trial01",
		testsupport.SampleDecomposition(64, 4, sampleUnit()))

	if _, err := d.ExportGroup(ctx, "", []string{"trial01", "trial02"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("empty label: err = %v, want validation", err)
	}
	if _, err := d.ExportGroup(ctx, "walking", []string{"trial01"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("single member: err = %v, want validation", err)
	}
}

func TestExportGroupWritesContainerAndGroupings(t *testing.T) {
	d, layout := newTestDaemon(t)
	ctx := context.Background()

	testsupport.WriteDecomposition(t, layout, "trial01",
		testsupport.SampleDecomposition(64, 4, sampleUnit()))
	testsupport.WriteDecomposition(t, layout, "trial02",
		testsupport.SampleDecomposition(64, 4, sampleUnit()))

	output, err := d.ExportGroup(ctx, "walking", []string{"trial01", "trial02"})
	if err != nil {
		t.Fatalf("export group: %v", err)
	}
	if !workfolder.FileExists(output) {
		t.Fatalf("missing group container %s", output)
	}

	groupings, err := workfolder.LoadGroupings(layout.Decomposition())
	if err != nil {
		t.Fatalf("load groupings: %v", err)
	}
	members := groupings["walking"]
	if len(members) != 2 {
		t.Fatalf("group members = %v", members)
	}

	entries, err := d.JournalEntries(ctx, false, 1)
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	if len(entries) != 1 || entries[0].Direction != journal.DirectionMultiGrid {
		t.Fatalf("journal head = %+v, want multigrid row", entries)
	}
}

func TestSkipGateUnknownName(t *testing.T) {
	d, _ := newTestDaemon(t)

	if _, err := d.SkipGate(context.Background(), "sideways", ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestStepsReconstruction(t *testing.T) {
	d, _ := newTestDaemon(t)

	state, err := d.Steps(context.Background())
	if err != nil {
		t.Fatalf("steps: %v", err)
	}
	if len(state.Steps) != pipeline.StepCount {
		t.Fatalf("got %d steps, want %d", len(state.Steps), pipeline.StepCount)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	d, _ := newTestDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("second start should fail")
	}
	status, err := d.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Running {
		t.Fatal("daemon should report running")
	}

	d.Stop()
	status, err = d.Status(ctx)
	if err != nil {
		t.Fatalf("status after stop: %v", err)
	}
	if status.Running {
		t.Fatal("daemon should report stopped")
	}
}
