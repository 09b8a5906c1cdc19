package bridge

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"emgpipe/internal/mat73"
	"emgpipe/internal/services"
)

// Edition is the unit-level content of an edited container, normalized to
// pipeline conventions: zero-based discharge indices in ascending order and
// one accuracy value per unit.
type Edition struct {
	Accuracy   []float64
	PulseTrain [][]float64
	Discharges [][]int64
	Samples    int
}

// ReadEdition extracts the edited unit set from a container the editing tool
// wrote back. The file must carry the edition section the tool adds on save;
// a plain export does not qualify.
func ReadEdition(path string) (*Edition, error) {
	vars, err := mat73.ReadFile(path)
	if err != nil {
		if errors.Is(err, mat73.ErrDanglingReference) {
			return nil, services.Wrap(services.ErrReferenceResolution, "bridge", "read edition",
				filepath.Base(path), err)
		}
		return nil, services.Wrap(services.ErrValidation, "bridge", "read edition",
			filepath.Base(path), err)
	}

	ed, ok := vars["edition"]
	if !ok || ed.Class != mat73.ClassStruct {
		return nil, services.Wrap(services.ErrStructureMissing, "bridge", "read edition",
			fmt.Sprintf("%s has no edition section; the editing tool has not saved it", filepath.Base(path)), nil)
	}

	silval, err := ed.Field("silval")
	if err != nil {
		return nil, services.Wrap(services.ErrStructureMissing, "bridge", "read edition", "edition.silval", err)
	}
	pulseClean, err := ed.Field("Pulsetrainclean")
	if err != nil {
		return nil, services.Wrap(services.ErrStructureMissing, "bridge", "read edition", "edition.Pulsetrainclean", err)
	}
	distime, err := ed.Field("Distimeclean")
	if err != nil {
		return nil, services.Wrap(services.ErrStructureMissing, "bridge", "read edition", "edition.Distimeclean", err)
	}

	first, err := firstCell(pulseClean)
	if err != nil {
		return nil, services.Wrap(services.ErrStructureMissing, "bridge", "read edition", "edition.Pulsetrainclean", err)
	}
	trains, samples, err := pulseTrainRows(first)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "bridge", "read edition", "edition.Pulsetrainclean", err)
	}
	nMU := len(trains)

	cells := dischargeCells(distime)
	if len(cells) != nMU {
		return nil, services.Wrap(services.ErrCountMismatch, "bridge", "read edition",
			fmt.Sprintf("%d discharge row(s) for %d unit(s)", len(cells), nMU), nil)
	}
	discharges := make([][]int64, nMU)
	for i, cell := range cells {
		d, err := dischargeIndices(cell, samples)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "bridge", "read edition",
				fmt.Sprintf("unit %d discharge times", i), err)
		}
		discharges[i] = d
	}

	accCell, err := firstCell(silval)
	if err != nil {
		return nil, services.Wrap(services.ErrStructureMissing, "bridge", "read edition", "edition.silval", err)
	}
	accuracy, err := accCell.Vector()
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "bridge", "read edition", "edition.silval", err)
	}
	if len(accuracy) < nMU {
		return nil, services.Wrap(services.ErrCountMismatch, "bridge", "read edition",
			fmt.Sprintf("%d accuracy value(s) for %d unit(s)", len(accuracy), nMU), nil)
	}

	return &Edition{
		Accuracy:   accuracy[:nMU],
		PulseTrain: trains,
		Discharges: discharges,
		Samples:    samples,
	}, nil
}

// firstCell returns the first grid's element of a per-grid cell row, or the
// array itself when the tool saved a bare value.
func firstCell(a *mat73.Array) (*mat73.Array, error) {
	if a.Class != mat73.ClassCell {
		return a, nil
	}
	if len(a.Cells) == 0 || a.Cells[0] == nil {
		return nil, errors.New("cell row is empty")
	}
	return a.Cells[0], nil
}

// pulseTrainRows reads the cleaned pulse-train matrix as one row per unit,
// taking units along the shorter dimension: recordings carry more samples
// than units.
func pulseTrainRows(a *mat73.Array) ([][]float64, int, error) {
	rows, err := a.Matrix()
	if err != nil {
		return nil, 0, err
	}
	samples := 0
	for _, d := range a.Dims {
		if d > samples {
			samples = d
		}
	}
	if len(rows) > 0 && len(rows) > len(rows[0]) {
		rows = transposeFloats(rows)
	}
	return rows, samples, nil
}

func transposeFloats(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows[0]))
	for i := range out {
		out[i] = make([]float64, len(rows))
		for j := range rows {
			out[i][j] = rows[j][i]
		}
	}
	return out
}

// dischargeCells unwraps Distimeclean, which nests one level deeper than the
// other edition fields: a 1x1 cell whose only element is the per-unit cell
// row. Containers that skip the outer wrapper are accepted as-is.
func dischargeCells(a *mat73.Array) []*mat73.Array {
	if a.Class != mat73.ClassCell {
		return nil
	}
	cells := a.Cells
	if len(cells) == 1 && cells[0] != nil && cells[0].Class == mat73.ClassCell {
		cells = cells[0].Cells
	}
	return cells
}

// dischargeIndices converts one unit's one-based discharge vector to sorted,
// deduplicated zero-based indices.
func dischargeIndices(a *mat73.Array, samples int) ([]int64, error) {
	if a == nil || a.IsEmpty() {
		return nil, nil
	}
	values, err := a.Vector()
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(values))
	for _, v := range values {
		idx := int64(v)
		if idx < 1 || idx > int64(samples) {
			return nil, fmt.Errorf("discharge %g outside [1, %d]", v, samples)
		}
		out = append(out, idx-1)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}
