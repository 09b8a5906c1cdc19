package emgjson_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"emgpipe/internal/emgjson"
	"emgpipe/internal/services"
)

func sampleFile() *emgjson.DecompositionFile {
	raw := make([][]float64, 200)
	for i := range raw {
		raw[i] = []float64{float64(i) * 0.1, float64(i) * -0.1}
	}
	units := []emgjson.Unit{
		{
			PulseTrain: make([]float64, 200),
			Discharges: []int64{5, 40, 90, 150},
			Accuracy:   0.93,
		},
		{
			PulseTrain: make([]float64, 200),
			Discharges: []int64{12, 60, 130},
			Accuracy:   0.88,
		},
	}
	units[0].PulseTrain[5] = 1.0
	units[1].PulseTrain[12] = 0.7
	return &emgjson.DecompositionFile{
		Metadata: emgjson.Metadata{
			SamplingRate: 2048,
			Source:       "decomposition-suite",
			Filename:     "forearm_trial1.json",
			Grids: []emgjson.GridInfo{{
				Name:           "GR08MM1305",
				Muscle:         "FDI",
				Rows:           13,
				Cols:           5,
				IEDMillimeters: 8,
				ElectrodeCount: 64,
			}},
		},
		RawSignal:    raw,
		Units:        units,
		BinaryFiring: emgjson.BuildBinaryFiring(200, units),
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forearm_trial1.json")

	original := sampleFile()
	if err := emgjson.Save(path, original, 4); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := emgjson.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(original, loaded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadAcceptsPlainJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.json")

	original := sampleFile()
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write plain json: %v", err)
	}

	loaded, err := emgjson.Load(path)
	if err != nil {
		t.Fatalf("Load failed on plain JSON: %v", err)
	}
	if loaded.Metadata.SamplingRate != 2048 {
		t.Fatalf("unexpected sampling rate: %v", loaded.Metadata.SamplingRate)
	}
}

func TestLoadDerivesBinaryFiring(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nofiring.json")

	original := sampleFile()
	original.BinaryFiring = nil
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, err := emgjson.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.BinaryFiring) != 200 {
		t.Fatalf("expected derived firing matrix with 200 rows, got %d", len(loaded.BinaryFiring))
	}
	ones := 0
	for _, row := range loaded.BinaryFiring {
		for _, v := range row {
			if v == 1 {
				ones++
			}
		}
	}
	if ones != 7 {
		t.Fatalf("expected 7 firing entries, got %d", ones)
	}
}

func TestValidateRejectsUnorderedDischarges(t *testing.T) {
	f := sampleFile()
	f.Units[0].Discharges = []int64{40, 5}
	f.BinaryFiring = nil
	err := f.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
}

func TestValidateRejectsOutOfRangeDischarge(t *testing.T) {
	f := sampleFile()
	f.Units[1].Discharges = []int64{12, 60, 500}
	f.BinaryFiring = nil
	if err := f.Validate(); err == nil {
		t.Fatal("expected out-of-range discharge to fail validation")
	}
}

func TestBuildBinaryFiringOneEntryPerDischarge(t *testing.T) {
	units := []emgjson.Unit{
		{Discharges: []int64{0, 3, 9}},
		{Discharges: []int64{1, 3}},
	}
	matrix := emgjson.BuildBinaryFiring(10, units)
	counts := make([]int, len(units))
	for _, row := range matrix {
		for ui, v := range row {
			if v == 1 {
				counts[ui]++
			}
		}
	}
	if counts[0] != 3 || counts[1] != 2 {
		t.Fatalf("unexpected firing counts: %v", counts)
	}
	if matrix[3][0] != 1 || matrix[3][1] != 1 {
		t.Fatal("expected shared discharge sample to fire for both units")
	}
}
