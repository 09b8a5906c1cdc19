package quality_test

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"emgpipe/internal/emgjson"
	"emgpipe/internal/quality"
	"emgpipe/internal/workfolder"
)

// writeDecomposition drops a valid decomposition result with the given
// units and a small two-channel raw signal.
func writeDecomposition(t *testing.T, path string, units ...emgjson.Unit) {
	t.Helper()
	const samples = 400
	raw := make([][]float64, samples)
	for s := range raw {
		raw[s] = []float64{float64(s) * 0.001, float64(s) * 0.002}
	}
	f := &emgjson.DecompositionFile{
		Metadata: emgjson.Metadata{
			SamplingRate: 2048,
			Grids: []emgjson.GridInfo{{
				Name:           "GR04MM1305",
				Muscle:         "biceps",
				Rows:           2,
				Cols:           1,
				ElectrodeCount: 2,
			}},
		},
		RawSignal: raw,
		Units:     units,
	}
	if err := emgjson.Save(path, f, 4); err != nil {
		t.Fatalf("save fixture %s: %v", path, err)
	}
}

// steadyUnit fires every period samples: CoVISI 0.
func steadyUnit(period, count int) emgjson.Unit {
	discharges := make([]int64, count)
	for i := range discharges {
		discharges[i] = int64(i * period)
	}
	return emgjson.Unit{Discharges: discharges, Accuracy: 0.9}
}

// jitteryUnit alternates 10- and 100-sample intervals: CoVISI ~81.8%.
func jitteryUnit() emgjson.Unit {
	return emgjson.Unit{Discharges: []int64{0, 10, 110, 120, 220}, Accuracy: 0.6}
}

func TestRunPreFilter(t *testing.T) {
	dir := t.TempDir()
	writeDecomposition(t, filepath.Join(dir, "run01.json"),
		steadyUnit(20, 16), jitteryUnit(), emgjson.Unit{Discharges: []int64{7}})
	writeDecomposition(t, filepath.Join(dir, "run02.json"), steadyUnit(25, 12))

	report, err := quality.New(quality.Options{}).RunPreFilter(dir)
	if err != nil {
		t.Fatalf("RunPreFilter: %v", err)
	}

	if report.FilesProcessed != 2 {
		t.Errorf("FilesProcessed = %d, want 2", report.FilesProcessed)
	}
	if report.TotalMUsOriginal != 4 || report.TotalMUsFiltered != 2 || report.TotalMUsRemoved != 2 {
		t.Errorf("totals = %d/%d/%d, want 4/2/2",
			report.TotalMUsOriginal, report.TotalMUsFiltered, report.TotalMUsRemoved)
	}

	stats, ok := report.PerFileStats["run01.json"].(quality.FileFilterStats)
	if !ok {
		t.Fatalf("per-file stats for run01.json: %#v", report.PerFileStats["run01.json"])
	}
	if diff := cmp.Diff([]int{1, 2}, stats.RemovedMUIndices); diff != "" {
		t.Errorf("removed indices mismatch (-want +got):\n%s", diff)
	}
	if stats.CovisiValues["2"] != nil {
		t.Errorf("unit 2 CoVISI = %v, want null", *stats.CovisiValues["2"])
	}
	if v := stats.CovisiValues["0"]; v == nil || *v != 0 {
		t.Errorf("unit 0 CoVISI = %v, want 0", v)
	}

	filtered, err := emgjson.Load(filepath.Join(dir, "run01_covisi_filtered.json"))
	if err != nil {
		t.Fatalf("load filtered copy: %v", err)
	}
	if len(filtered.Units) != 1 {
		t.Errorf("filtered copy has %d units, want 1", len(filtered.Units))
	}

	for _, name := range []string{
		"run01_covisi_filtered_muedit.mat",
		"run02_covisi_filtered_muedit.mat",
		workfolder.PreFilterReportName,
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, workfolder.PreFilterReportName))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var onDisk map[string]any
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if onDisk["report_type"] != "pre_filter" {
		t.Errorf("report_type = %v, want pre_filter", onDisk["report_type"])
	}
	if onDisk["covisi_threshold"] != 30.0 {
		t.Errorf("covisi_threshold = %v, want 30", onDisk["covisi_threshold"])
	}
}

func TestRunPreFilterRecordsFailures(t *testing.T) {
	dir := t.TempDir()
	writeDecomposition(t, filepath.Join(dir, "good.json"), steadyUnit(20, 16))
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}

	report, err := quality.New(quality.Options{}).RunPreFilter(dir)
	if err != nil {
		t.Fatalf("RunPreFilter: %v", err)
	}
	if report.FilesProcessed != 1 {
		t.Errorf("FilesProcessed = %d, want 1", report.FilesProcessed)
	}
	if _, ok := report.PerFileStats["broken.json"].(quality.FileError); !ok {
		t.Errorf("broken.json entry = %#v, want FileError", report.PerFileStats["broken.json"])
	}
}

func TestRunPreFilterSkipsFilteredCopies(t *testing.T) {
	dir := t.TempDir()
	writeDecomposition(t, filepath.Join(dir, "run01.json"), steadyUnit(20, 16))
	analyzer := quality.New(quality.Options{})
	if _, err := analyzer.RunPreFilter(dir); err != nil {
		t.Fatal(err)
	}

	report, err := analyzer.RunPreFilter(dir)
	if err != nil {
		t.Fatal(err)
	}
	if report.FilesProcessed != 1 {
		t.Errorf("second run processed %d files, want 1", report.FilesProcessed)
	}
	doubled := filepath.Join(dir, "run01_covisi_filtered_covisi_filtered.json")
	if _, err := os.Stat(doubled); !os.IsNotExist(err) {
		t.Error("filtered copy was filtered again")
	}
}

func TestRunPreFilterCustomThreshold(t *testing.T) {
	dir := t.TempDir()
	// CoVISI ~40.8%: removed at the default threshold, kept at 50.
	unit := emgjson.Unit{Discharges: []int64{0, 10, 30, 60}, Accuracy: 0.8}
	writeDecomposition(t, filepath.Join(dir, "run01.json"), unit)

	report, err := quality.New(quality.Options{CovisiThreshold: 50}).RunPreFilter(dir)
	if err != nil {
		t.Fatalf("RunPreFilter: %v", err)
	}
	if report.TotalMUsRemoved != 0 {
		t.Errorf("TotalMUsRemoved = %d, want 0", report.TotalMUsRemoved)
	}
	stats := report.PerFileStats["run01.json"].(quality.FileFilterStats)
	if stats.ThresholdUsed != 50 {
		t.Errorf("ThresholdUsed = %v, want 50", stats.ThresholdUsed)
	}
}

func TestWriteSkipReport(t *testing.T) {
	dir := t.TempDir()
	writeDecomposition(t, filepath.Join(dir, "run01.json"), steadyUnit(20, 16))

	if err := quality.WriteSkipReport(dir, quality.ReportPreFilter, 30, "editing tool unavailable"); err != nil {
		t.Fatalf("WriteSkipReport: %v", err)
	}
	var pre map[string]any
	readJSON(t, filepath.Join(dir, workfolder.PreFilterReportName), &pre)
	if pre["filtering_skipped"] != true {
		t.Errorf("filtering_skipped = %v, want true", pre["filtering_skipped"])
	}
	if pre["files_count"] != 1.0 {
		t.Errorf("files_count = %v, want 1", pre["files_count"])
	}
	if pre["reason"] != "editing tool unavailable" {
		t.Errorf("reason = %v", pre["reason"])
	}

	if err := quality.WriteSkipReport(dir, quality.ReportPostValidation, 30, "accepted without validation"); err != nil {
		t.Fatalf("WriteSkipReport: %v", err)
	}
	var post map[string]any
	readJSON(t, filepath.Join(dir, workfolder.PostValidationReportName), &post)
	if post["validation_skipped"] != true {
		t.Errorf("validation_skipped = %v, want true", post["validation_skipped"])
	}
	if _, ok := post["filtering_skipped"]; ok {
		t.Error("post-validation skip carries filtering_skipped")
	}
	if post["report_type"] != "post_validation" {
		t.Errorf("report_type = %v", post["report_type"])
	}
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
