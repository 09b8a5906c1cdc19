package quality_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"emgpipe/internal/emgjson"
	"emgpipe/internal/mat73"
	"emgpipe/internal/quality"
	"emgpipe/internal/workfolder"
)

// writeEdited drops an editing-tool output container holding the given
// accuracy vector, pulse train matrix, and one-based discharge rows.
func writeEdited(t *testing.T, path string, accuracy []float64, trains [][]float64, discharges [][]float64) {
	t.Helper()
	rows := make([]*mat73.Array, len(discharges))
	for i, d := range discharges {
		rows[i] = mat73.RowVector(d)
	}
	pulse, err := mat73.FromMatrix(trains)
	if err != nil {
		t.Fatalf("pulse matrix: %v", err)
	}
	edition := mat73.Struct(map[string]*mat73.Array{
		"silval":          mat73.CellRow([]*mat73.Array{mat73.RowVector(accuracy)}),
		"Pulsetrainclean": mat73.CellRow([]*mat73.Array{pulse}),
		"Distimeclean":    mat73.CellRow([]*mat73.Array{mat73.CellRow(rows)}),
	})
	if err := mat73.WriteFile(path, map[string]*mat73.Array{"edition": edition}, 3); err != nil {
		t.Fatalf("write edited container: %v", err)
	}
}

func TestComparePrePost(t *testing.T) {
	pre := []float64{40, 25, math.NaN(), 10}
	post := []float64{20, 35, 15}

	c := quality.ComparePrePost(pre, post, 30)

	if c.PreMUCount != 4 || c.PostMUCount != 3 || c.MUsRemoved != 1 {
		t.Errorf("counts = %d/%d/%d, want 4/3/1", c.PreMUCount, c.PostMUCount, c.MUsRemoved)
	}
	if diff := cmp.Diff([]int{1}, c.MUsExceedingThreshold); diff != "" {
		t.Errorf("exceeding indices mismatch (-want +got):\n%s", diff)
	}
	if c.AvgCovisiPre == nil || !almostEqual(*c.AvgCovisiPre, 25) {
		t.Errorf("AvgCovisiPre = %v, want 25", c.AvgCovisiPre)
	}
	// Improvements: (40-20)/40 = 50%, (25-35)/25 = -40%; unit 2 undefined.
	if c.AvgImprovementPercent == nil || !almostEqual(*c.AvgImprovementPercent, 5) {
		t.Errorf("AvgImprovementPercent = %v, want 5", c.AvgImprovementPercent)
	}
	if len(c.ComparisonDetails) != 3 {
		t.Fatalf("got %d detail rows, want 3", len(c.ComparisonDetails))
	}
	d2 := c.ComparisonDetails[2]
	if d2.CovisiPre != nil || d2.ImprovementPercent != nil {
		t.Errorf("unit 2 detail = %+v, want null pre and improvement", d2)
	}
	if d2.ExceedsThreshold {
		t.Error("unit 2 flagged at 15 with threshold 30")
	}
	if !c.ComparisonDetails[1].ExceedsThreshold {
		t.Error("unit 1 not flagged at 35 with threshold 30")
	}
}

func TestComparePrePostEmpty(t *testing.T) {
	c := quality.ComparePrePost(nil, nil, 30)
	if c.AvgCovisiPre != nil || c.AvgCovisiPost != nil || c.AvgImprovementPercent != nil {
		t.Errorf("averages of empty comparison = %+v, want null", c)
	}
	if len(c.ComparisonDetails) != 0 || len(c.MUsExceedingThreshold) != 0 {
		t.Errorf("empty comparison has rows: %+v", c)
	}
}

func TestRunPostValidation(t *testing.T) {
	dir := t.TempDir()
	writeDecomposition(t, filepath.Join(dir, "run01.json"),
		jitteryUnit(), steadyUnit(20, 16), emgjson.Unit{Discharges: []int64{7}})

	trains := zeroTrains(2, 400)
	editedName := "run01" + workfolder.ExportSuffix + workfolder.EditedSuffix
	writeEdited(t, filepath.Join(dir, editedName),
		[]float64{0.95, 0.7},
		trains,
		[][]float64{
			oneBasedSteady(20, 16),
			{1, 11, 111, 121, 221},
		})

	report, err := quality.New(quality.Options{}).RunPostValidation(dir)
	if err != nil {
		t.Fatalf("RunPostValidation: %v", err)
	}

	if report.FilesValidated != 1 {
		t.Fatalf("FilesValidated = %d, want 1", report.FilesValidated)
	}
	if report.TotalMUsPre != 3 || report.TotalMUsPost != 2 {
		t.Errorf("unit totals = %d/%d, want 3/2", report.TotalMUsPre, report.TotalMUsPost)
	}
	if report.MUsExceedingThreshold != 1 {
		t.Errorf("MUsExceedingThreshold = %d, want 1", report.MUsExceedingThreshold)
	}

	comparison, ok := report.PerFileReports[editedName].(quality.FileComparison)
	if !ok {
		t.Fatalf("per-file report: %#v", report.PerFileReports[editedName])
	}
	if comparison.MUsRemoved != 1 {
		t.Errorf("MUsRemoved = %d, want 1", comparison.MUsRemoved)
	}
	if diff := cmp.Diff([]int{1}, comparison.MUsExceedingThreshold); diff != "" {
		t.Errorf("exceeding indices mismatch (-want +got):\n%s", diff)
	}
	if len(comparison.ComparisonDetails) != 2 {
		t.Fatalf("got %d detail rows, want 2", len(comparison.ComparisonDetails))
	}
	// Unit 0 went from jittery to perfectly regular.
	d0 := comparison.ComparisonDetails[0]
	if d0.ImprovementPercent == nil || !almostEqual(*d0.ImprovementPercent, 100) {
		t.Errorf("unit 0 improvement = %v, want 100", d0.ImprovementPercent)
	}
	if report.AvgImprovementOverall == nil || !almostEqual(*report.AvgImprovementOverall, 100) {
		t.Errorf("AvgImprovementOverall = %v, want 100", report.AvgImprovementOverall)
	}
	if comparison.JSONPath != filepath.Join(dir, "run01.json") {
		t.Errorf("JSONPath = %q", comparison.JSONPath)
	}

	// Run alone does not persist the gate artifact.
	if _, err := os.Stat(filepath.Join(dir, workfolder.PostValidationReportName)); !os.IsNotExist(err) {
		t.Error("RunPostValidation wrote the report file")
	}
}

func TestRunPostValidationSkipsUnmatchedEdits(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "orphan_muedit.mat_edited.mat"), []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}

	report, err := quality.New(quality.Options{}).RunPostValidation(dir)
	if err != nil {
		t.Fatalf("RunPostValidation: %v", err)
	}
	if report.FilesValidated != 0 || len(report.PerFileReports) != 0 {
		t.Errorf("unexpected results for unmatched edit: %+v", report)
	}
}

func TestRunPostValidationRecordsFailures(t *testing.T) {
	dir := t.TempDir()
	writeDecomposition(t, filepath.Join(dir, "run01.json"), steadyUnit(20, 16))
	editedName := "run01" + workfolder.ExportSuffix + workfolder.EditedSuffix
	if err := os.WriteFile(filepath.Join(dir, editedName), []byte("not a container"), 0o644); err != nil {
		t.Fatal(err)
	}

	report, err := quality.New(quality.Options{}).RunPostValidation(dir)
	if err != nil {
		t.Fatalf("RunPostValidation: %v", err)
	}
	if report.FilesValidated != 0 {
		t.Errorf("FilesValidated = %d, want 0", report.FilesValidated)
	}
	if _, ok := report.PerFileReports[editedName].(quality.FileError); !ok {
		t.Errorf("entry = %#v, want FileError", report.PerFileReports[editedName])
	}
}

func TestAcceptPostValidation(t *testing.T) {
	dir := t.TempDir()
	writeDecomposition(t, filepath.Join(dir, "run01.json"), steadyUnit(20, 16))
	editedName := "run01" + workfolder.ExportSuffix + workfolder.EditedSuffix
	writeEdited(t, filepath.Join(dir, editedName),
		[]float64{0.95}, zeroTrains(1, 400), [][]float64{oneBasedSteady(20, 16)})

	report, err := quality.New(quality.Options{}).AcceptPostValidation(dir)
	if err != nil {
		t.Fatalf("AcceptPostValidation: %v", err)
	}
	if report.Action != quality.ActionAcceptedAll {
		t.Errorf("Action = %q, want %q", report.Action, quality.ActionAcceptedAll)
	}

	var onDisk map[string]any
	readJSON(t, filepath.Join(dir, workfolder.PostValidationReportName), &onDisk)
	if onDisk["action"] != quality.ActionAcceptedAll {
		t.Errorf("persisted action = %v", onDisk["action"])
	}
	if onDisk["report_type"] != "post_validation" {
		t.Errorf("report_type = %v", onDisk["report_type"])
	}
	if onDisk["files_validated"] != 1.0 {
		t.Errorf("files_validated = %v, want 1", onDisk["files_validated"])
	}
}

func TestFilterPostValidationCollectsExclusions(t *testing.T) {
	dir := t.TempDir()
	writeDecomposition(t, filepath.Join(dir, "run01.json"), jitteryUnit(), steadyUnit(20, 16))
	editedName := "run01" + workfolder.ExportSuffix + workfolder.EditedSuffix
	writeEdited(t, filepath.Join(dir, editedName),
		[]float64{0.95, 0.7},
		zeroTrains(2, 400),
		[][]float64{
			oneBasedSteady(20, 16),
			{1, 11, 111, 121, 221},
		})

	report, err := quality.New(quality.Options{}).FilterPostValidation(dir)
	if err != nil {
		t.Fatalf("FilterPostValidation: %v", err)
	}
	if report.Action != quality.ActionFilteredFailing {
		t.Errorf("Action = %q, want %q", report.Action, quality.ActionFilteredFailing)
	}
	want := []quality.ExcludedUnit{{File: editedName, MUIndex: 1}}
	if diff := cmp.Diff(want, report.MUsToExclude); diff != "" {
		t.Errorf("exclusions mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(filepath.Join(dir, workfolder.PostValidationReportName)); err != nil {
		t.Errorf("report not persisted: %v", err)
	}
}

func zeroTrains(units, samples int) [][]float64 {
	trains := make([][]float64, units)
	for i := range trains {
		trains[i] = make([]float64, samples)
	}
	return trains
}

func oneBasedSteady(period, count int) []float64 {
	discharges := make([]float64, count)
	for i := range discharges {
		discharges[i] = float64(i*period + period)
	}
	return discharges
}
