package pipeline_test

import (
	"errors"
	"path/filepath"
	"testing"

	"emgpipe/internal/pipeline"
	"emgpipe/internal/services"
	"emgpipe/internal/workfolder"
)

func newMachine(t *testing.T, layout workfolder.Layout) *pipeline.Machine {
	t.Helper()
	m, err := pipeline.NewMachine(layout.Root, pipeline.Options{})
	if err != nil {
		t.Fatalf("new machine: %v", err)
	}
	return m
}

func TestMachineStartsOnActiveStep(t *testing.T) {
	layout := newFolder(t)
	seedThrough(t, layout, 3)

	m := newMachine(t, layout)
	if got := m.Current(); got != 4 {
		t.Fatalf("current = %d, want 4", got)
	}
}

func TestMachineAdvanceRequiresCompletePredecessors(t *testing.T) {
	layout := newFolder(t)
	seedThrough(t, layout, 1)

	m := newMachine(t, layout)
	if _, err := m.Advance(2); err != nil {
		t.Fatalf("advance to unlocked step: %v", err)
	}
	if got := m.Current(); got != 2 {
		t.Fatalf("current = %d, want 2", got)
	}

	_, err := m.Advance(5)
	if !errors.Is(err, services.ErrPrerequisiteNotMet) {
		t.Fatalf("advance past incomplete step: err = %v, want prerequisite error", err)
	}
	if got := m.Current(); got != 2 {
		t.Fatalf("failed advance moved the cursor to %d", got)
	}
}

func TestMachineAdvanceRejectsOutOfRange(t *testing.T) {
	layout := newFolder(t)
	m := newMachine(t, layout)
	if _, err := m.Advance(0); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("advance(0): err = %v, want validation error", err)
	}
	if _, err := m.Advance(pipeline.StepCount + 1); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("advance past end: err = %v, want validation error", err)
	}
}

func TestMachineSkipOnlyGates(t *testing.T) {
	layout := newFolder(t)
	m := newMachine(t, layout)

	if _, err := m.Skip(pipeline.StepCleaning, ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("skip of mandatory step: err = %v, want validation error", err)
	}
	if _, err := m.Skip(pipeline.GatePreFilter, ""); !errors.Is(err, services.ErrPrerequisiteNotMet) {
		t.Fatalf("skip of locked gate: err = %v, want prerequisite error", err)
	}
}

func TestMachineSkipWritesReportAndMarker(t *testing.T) {
	layout := newFolder(t)
	seedThrough(t, layout, 8)

	m := newMachine(t, layout)
	state, err := m.Skip(pipeline.GatePreFilter, "pilot session")
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	st, _ := state.StepState(pipeline.GatePreFilter)
	if st.Status != pipeline.StatusComplete {
		t.Fatalf("gate status = %q, want complete", st.Status)
	}

	dir := layout.Decomposition()
	if !workfolder.FileExists(filepath.Join(dir, workfolder.PreFilterReportName)) {
		t.Fatal("skip did not persist the gate report")
	}
	marker, ok := workfolder.ReadSkipMarker(dir)
	if !ok {
		t.Fatal("skip did not persist the marker")
	}
	if marker.Reason != "pilot session" {
		t.Fatalf("marker reason = %q", marker.Reason)
	}

	// Skipping an already complete gate changes nothing.
	if _, err := m.Skip(pipeline.GatePreFilter, "again"); err != nil {
		t.Fatalf("second skip: %v", err)
	}
	marker, _ = workfolder.ReadSkipMarker(dir)
	if marker.Reason != "pilot session" {
		t.Fatalf("second skip rewrote the marker: %q", marker.Reason)
	}
}

func TestMachineSkipSurvivesReopen(t *testing.T) {
	layout := newFolder(t)
	seedThrough(t, layout, 8)

	m := newMachine(t, layout)
	if _, err := m.Skip(pipeline.GatePreFilter, "waived"); err != nil {
		t.Fatalf("skip: %v", err)
	}

	reopened := newMachine(t, layout)
	state := reopened.State()
	st, _ := state.StepState(pipeline.GatePreFilter)
	if st.Status != pipeline.StatusComplete {
		t.Fatalf("reopened gate status = %q, want complete", st.Status)
	}
	if got := reopened.Current(); got != pipeline.StepCleaning {
		t.Fatalf("reopened current = %d, want %d", got, pipeline.StepCleaning)
	}
}

func TestMachineReturnTo(t *testing.T) {
	layout := newFolder(t)
	seedThrough(t, layout, 5)

	m := newMachine(t, layout)
	if got := m.Current(); got != 6 {
		t.Fatalf("current = %d, want 6", got)
	}

	if _, err := m.ReturnTo(3); err != nil {
		t.Fatalf("return to earlier step: %v", err)
	}
	if got := m.Current(); got != 3 {
		t.Fatalf("current = %d, want 3", got)
	}

	if _, err := m.ReturnTo(7); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("return forward: err = %v, want validation error", err)
	}
}
