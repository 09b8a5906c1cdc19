package emgjson

import (
	"fmt"

	"emgpipe/internal/services"
)

// GridInfo describes one electrode grid contributing channels to a recording.
type GridInfo struct {
	Name           string  `json:"name"`
	Muscle         string  `json:"muscle,omitempty"`
	Rows           int     `json:"rows"`
	Cols           int     `json:"cols"`
	IEDMillimeters float64 `json:"iedMillimeters,omitempty"`
	ElectrodeCount int     `json:"electrodeCount"`
}

// Metadata carries the file-level fields every stage preserves verbatim.
type Metadata struct {
	SamplingRate float64           `json:"samplingRate"`
	Source       string            `json:"source,omitempty"`
	Filename     string            `json:"filename,omitempty"`
	Grids        []GridInfo        `json:"grids"`
	Provenance   map[string]string `json:"provenance,omitempty"`
}

// Unit is one decomposed motor unit. Discharges are zero-based sample
// indices, strictly increasing and unique; the pulse train is aligned to the
// shared time base.
type Unit struct {
	PulseTrain []float64 `json:"pulseTrain"`
	Discharges []int64   `json:"discharges"`
	Accuracy   float64   `json:"accuracy"`
}

// DecompositionFile is the JSON representation of one decomposition result.
// RawSignal and BinaryFiring are time-major (samples x channels, samples x
// units).
type DecompositionFile struct {
	Metadata     Metadata    `json:"metadata"`
	RawSignal    [][]float64 `json:"rawSignal,omitempty"`
	RefSignal    [][]float64 `json:"refSignal,omitempty"`
	Units        []Unit      `json:"units"`
	BinaryFiring [][]int8    `json:"binaryFiring,omitempty"`
}

// SignalLength returns the number of samples on the shared time base.
func (f *DecompositionFile) SignalLength() int {
	if len(f.RawSignal) > 0 {
		return len(f.RawSignal)
	}
	if len(f.BinaryFiring) > 0 {
		return len(f.BinaryFiring)
	}
	longest := 0
	for _, u := range f.Units {
		if len(u.PulseTrain) > longest {
			longest = len(u.PulseTrain)
		}
	}
	return longest
}

// NumChannels returns the raw signal channel count.
func (f *DecompositionFile) NumChannels() int {
	if len(f.RawSignal) == 0 {
		return 0
	}
	return len(f.RawSignal[0])
}

// Validate checks the structural invariants the pipeline relies on: ascending
// unique discharge indices within the signal bounds, rectangular matrices,
// and a binary firing block consistent with the unit set when present.
func (f *DecompositionFile) Validate() error {
	if f.Metadata.SamplingRate <= 0 {
		return services.Wrap(services.ErrValidation, "emgjson", "validate", "sampling rate must be positive", nil)
	}
	length := f.SignalLength()
	if length == 0 {
		return services.Wrap(services.ErrValidation, "emgjson", "validate", "no samples present", nil)
	}
	for i, row := range f.RawSignal {
		if len(row) != len(f.RawSignal[0]) {
			return services.Wrap(services.ErrValidation, "emgjson", "validate",
				fmt.Sprintf("raw signal row %d has %d channels, want %d", i, len(row), len(f.RawSignal[0])), nil)
		}
	}
	for ui, u := range f.Units {
		prev := int64(-1)
		for di, d := range u.Discharges {
			if d < 0 || d >= int64(length) {
				return services.Wrap(services.ErrValidation, "emgjson", "validate",
					fmt.Sprintf("unit %d discharge %d out of range [0,%d)", ui, d, length), nil)
			}
			if d <= prev {
				return services.Wrap(services.ErrValidation, "emgjson", "validate",
					fmt.Sprintf("unit %d discharges not strictly increasing at position %d", ui, di), nil)
			}
			prev = d
		}
	}
	if len(f.BinaryFiring) > 0 {
		if len(f.BinaryFiring) != length {
			return services.Wrap(services.ErrValidation, "emgjson", "validate",
				fmt.Sprintf("binary firing has %d samples, want %d", len(f.BinaryFiring), length), nil)
		}
		for i, row := range f.BinaryFiring {
			if len(row) != len(f.Units) {
				return services.Wrap(services.ErrValidation, "emgjson", "validate",
					fmt.Sprintf("binary firing row %d has %d units, want %d", i, len(row), len(f.Units)), nil)
			}
		}
	}
	return nil
}

// BuildBinaryFiring reconstructs the samples x units firing matrix with
// exactly one 1 at each (discharge, unit) position.
func BuildBinaryFiring(signalLength int, units []Unit) [][]int8 {
	matrix := make([][]int8, signalLength)
	for i := range matrix {
		matrix[i] = make([]int8, len(units))
	}
	for ui, u := range units {
		for _, d := range u.Discharges {
			if d >= 0 && d < int64(signalLength) {
				matrix[d][ui] = 1
			}
		}
	}
	return matrix
}
