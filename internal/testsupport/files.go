package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"emgpipe/internal/emgjson"
	"emgpipe/internal/mat73"
	"emgpipe/internal/workfolder"
)

// MkdirAll creates a directory tree or fails the test.
func MkdirAll(t testing.TB, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
}

// Touch writes a small placeholder file, creating parent directories.
func Touch(t testing.TB, path string) {
	t.Helper()
	MkdirAll(t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// SampleDecomposition builds a small valid decomposition file with the given
// units over a 2048 Hz, single-grid recording.
func SampleDecomposition(samples, channels int, units ...emgjson.Unit) *emgjson.DecompositionFile {
	raw := make([][]float64, samples)
	for i := range raw {
		row := make([]float64, channels)
		for c := range row {
			row[c] = float64(i*channels + c)
		}
		raw[i] = row
	}
	f := &emgjson.DecompositionFile{
		Metadata: emgjson.Metadata{
			SamplingRate: 2048,
			Source:       "DEMUSE",
			Grids: []emgjson.GridInfo{{
				Name:           "GR08MM1305",
				Rows:           13,
				Cols:           5,
				ElectrodeCount: channels,
			}},
		},
		RawSignal: raw,
		Units:     units,
	}
	f.BinaryFiring = emgjson.BuildBinaryFiring(samples, units)
	return f
}

// PulseRamp builds a pulse train rising linearly to peak over n samples.
func PulseRamp(n int, peak float64) []float64 {
	train := make([]float64, n)
	for i := range train {
		train[i] = peak * float64(i) / float64(n-1)
	}
	return train
}

// WriteDecomposition saves a decomposition JSON into the decomposition
// folder and returns its path.
func WriteDecomposition(t testing.TB, layout workfolder.Layout, base string, f *emgjson.DecompositionFile) string {
	t.Helper()
	dir, err := layout.EnsureDir(workfolder.DirDecomposition)
	if err != nil {
		t.Fatalf("ensure decomposition dir: %v", err)
	}
	path := filepath.Join(dir, base+".json")
	if err := emgjson.Save(path, f, 4); err != nil {
		t.Fatalf("save %s: %v", path, err)
	}
	return path
}

// SeedUpstreamStages populates the pre-decomposition stage folders and the
// decomposition-side records so every step up to the first quality gate reads
// as complete for a single work unit. The decomposition JSON and its export
// must already exist.
func SeedUpstreamStages(t testing.TB, layout workfolder.Layout, base string) {
	t.Helper()
	Touch(t, filepath.Join(layout.OriginalFiles(), base+".mat"))
	Touch(t, filepath.Join(layout.AssociatedGrids(), base+".mat"))
	Touch(t, filepath.Join(layout.LineNoiseCleaned(), base+".mat"))
	Touch(t, filepath.Join(layout.Analysis(), "rms_report.csv"))
	Touch(t, filepath.Join(layout.CroppedSignal(), base+".mat"))
	Touch(t, filepath.Join(layout.ChannelSelection(), base+".mat"))

	dir := layout.Decomposition()
	if err := os.WriteFile(filepath.Join(dir, workfolder.MappingFileName), []byte("{}"), 0o644); err != nil {
		t.Fatalf("write mapping record: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, workfolder.GroupingsFileName), []byte("{}"), 0o644); err != nil {
		t.Fatalf("write groupings record: %v", err)
	}
}

// WriteEditedContainer saves an editing-tool output container holding the
// given per-unit accuracy, pulse trains, and one-based discharge vectors.
func WriteEditedContainer(t testing.TB, path string, accuracy []float64, trains [][]float64, discharges [][]float64) {
	t.Helper()
	MkdirAll(t, filepath.Dir(path))
	pt, err := mat73.FromMatrix(trains)
	if err != nil {
		t.Fatalf("pulse train matrix: %v", err)
	}
	rows := make([]*mat73.Array, len(discharges))
	for i, d := range discharges {
		rows[i] = mat73.RowVector(d)
	}
	edition := mat73.Struct(map[string]*mat73.Array{
		"silval":          mat73.CellRow([]*mat73.Array{mat73.RowVector(accuracy)}),
		"Pulsetrainclean": mat73.CellRow([]*mat73.Array{pt}),
		"Distimeclean":    mat73.CellRow([]*mat73.Array{mat73.CellRow(rows)}),
	})
	if err := mat73.WriteFile(path, map[string]*mat73.Array{"edition": edition}, 3); err != nil {
		t.Fatalf("write edited container %s: %v", path, err)
	}
}

// OneBased converts zero-based discharge indices to the editor's one-based
// doubles.
func OneBased(discharges []int64) []float64 {
	out := make([]float64, len(discharges))
	for i, d := range discharges {
		out[i] = float64(d + 1)
	}
	return out
}
