package quality_test

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"emgpipe/internal/mat73"
	"emgpipe/internal/quality"
	"emgpipe/internal/services"
	"emgpipe/internal/workfolder"
)

// writeRecording stores channel-major sample rows in millivolts, either as a
// top-level data matrix or wrapped in the signal struct some cleaners emit.
func writeRecording(t *testing.T, path string, wrapped bool, channels [][]float64) {
	t.Helper()
	data, err := mat73.FromMatrix(channels)
	if err != nil {
		t.Fatalf("data matrix: %v", err)
	}
	vars := map[string]*mat73.Array{
		"data":  data,
		"fsamp": mat73.Scalar(2048),
	}
	if wrapped {
		vars = map[string]*mat73.Array{
			"signal": mat73.Struct(map[string]*mat73.Array{
				"data":  data,
				"fsamp": mat73.Scalar(2048),
			}),
		}
	}
	if err := mat73.WriteFile(path, vars, 3); err != nil {
		t.Fatalf("write recording %s: %v", path, err)
	}
}

func constantRow(v float64, n int) []float64 {
	row := make([]float64, n)
	for i := range row {
		row[i] = v
	}
	return row
}

func TestRunRMS(t *testing.T) {
	layout, err := workfolder.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open workfolder: %v", err)
	}
	cleanedDir, err := layout.EnsureDir(workfolder.DirLineNoiseCleaned)
	if err != nil {
		t.Fatalf("ensure cleaned dir: %v", err)
	}
	// 0.002 mV and 0.004 mV constants give 2 uV and 4 uV channels; the
	// 0.05 mV recording sits at 50 uV, past every band and the median fence.
	writeRecording(t, filepath.Join(cleanedDir, "a.mat"), true, [][]float64{
		constantRow(0.002, 64),
		constantRow(0.004, 64),
	})
	writeRecording(t, filepath.Join(cleanedDir, "b.mat"), false, [][]float64{
		constantRow(0.05, 64),
	})

	report, err := quality.New(quality.Options{}).RunRMS(layout)
	if err != nil {
		t.Fatalf("RunRMS: %v", err)
	}

	if report.TotalChannels != 3 || report.FlaggedChannels != 1 {
		t.Errorf("channels = %d flagged %d, want 3 flagged 1", report.TotalChannels, report.FlaggedChannels)
	}
	if !almostEqual(report.Median, 4) {
		t.Errorf("Median = %g, want 4", report.Median)
	}
	if diff := cmp.Diff(map[string]int{"excellent": 2, "bad": 1}, report.QualityCounts); diff != "" {
		t.Errorf("quality counts mismatch (-want +got):\n%s", diff)
	}
	if len(report.Files) != 2 {
		t.Fatalf("got %d files, want 2", len(report.Files))
	}

	a := report.Files[0]
	if a.File != "a.mat" || a.Quality != "excellent" {
		t.Errorf("first file = %s/%s, want a.mat/excellent", a.File, a.Quality)
	}
	if !almostEqual(a.MeanRMS, 3) || !almostEqual(a.MinRMS, 2) || !almostEqual(a.MaxRMS, 4) {
		t.Errorf("a.mat stats = mean %g min %g max %g", a.MeanRMS, a.MinRMS, a.MaxRMS)
	}
	if a.Channels[0].Flagged || a.Channels[1].Flagged {
		t.Error("a.mat channels flagged inside the median band")
	}

	b := report.Files[1]
	if b.Quality != "bad" || !b.Channels[0].Flagged {
		t.Errorf("b.mat = %s flagged %v, want bad flagged", b.Quality, b.Channels[0].Flagged)
	}

	raw, err := os.ReadFile(report.CSVPath)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("csv rows = %d, want header plus 3 channels", len(records))
	}
	wantHeader := []string{"file", "channel", "rms_uv", "quality", "flagged"}
	if diff := cmp.Diff(wantHeader, records[0]); diff != "" {
		t.Errorf("csv header mismatch (-want +got):\n%s", diff)
	}
	last := records[3]
	if last[0] != "b.mat" || last[3] != "bad" || last[4] != "true" {
		t.Errorf("csv b.mat row = %v", last)
	}

	html, err := os.ReadFile(report.HTMLPath)
	if err != nil {
		t.Fatalf("read chart: %v", err)
	}
	page := string(html)
	if !strings.Contains(page, "echarts") {
		t.Error("chart page does not embed echarts")
	}
	if !strings.Contains(page, "#ef4444") {
		t.Error("chart page does not color the bad recording")
	}
}

func TestRunRMSRequiresRecordings(t *testing.T) {
	layout, err := workfolder.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open workfolder: %v", err)
	}

	_, err = quality.New(quality.Options{}).RunRMS(layout)
	if !errors.Is(err, services.ErrStructureMissing) {
		t.Errorf("err = %v, want ErrStructureMissing", err)
	}
}

func TestRMSQualityBands(t *testing.T) {
	cases := map[float64]string{
		0:     "excellent",
		5:     "excellent",
		5.01:  "good",
		10:    "good",
		15:    "ok",
		20:    "troubled",
		20.01: "bad",
	}
	for value, want := range cases {
		if got := quality.RMSQuality(value); got != want {
			t.Errorf("RMSQuality(%g) = %q, want %q", value, got, want)
		}
	}
}
