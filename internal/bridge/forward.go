package bridge

import (
	"fmt"
	"path/filepath"
	"strings"

	"emgpipe/internal/emgjson"
	"emgpipe/internal/logging"
	"emgpipe/internal/mat73"
	"emgpipe/internal/services"
	"emgpipe/internal/workfolder"
)

// Export converts one decomposition JSON into the editing tool's container,
// written beside the source file. Files spanning more than one grid get the
// multi-grid output name. Returns the path of the written container.
func (b *Bridge) Export(jsonPath string) (string, error) {
	f, err := emgjson.Load(jsonPath)
	if err != nil {
		return "", err
	}

	grids := exportGrids(f)
	vars, err := buildForward(f, grids, jsonPath)
	if err != nil {
		return "", err
	}

	base := strings.TrimSuffix(filepath.Base(jsonPath), ".json")
	output := filepath.Join(filepath.Dir(jsonPath), workfolder.ExportName(base, len(grids) > 1))
	if err := mat73.WriteFile(output, vars, b.matLevel); err != nil {
		return "", services.Wrap(services.ErrTransient, "bridge", "export",
			fmt.Sprintf("write %s", filepath.Base(output)), err)
	}
	b.logger.Info("exported decomposition",
		logging.String("input", filepath.Base(jsonPath)),
		logging.String("output", filepath.Base(output)),
		logging.Int("units", len(f.Units)),
		logging.Int("grids", len(grids)))
	return output, nil
}

// buildForward assembles the signal and parameters variables for one file.
// Every unit lands in the first grid; the decomposition does not track
// per-grid unit membership, so the remaining grids carry empty placeholders.
func buildForward(f *emgjson.DecompositionFile, grids []emgjson.GridInfo, jsonPath string) (map[string]*mat73.Array, error) {
	samples := f.SignalLength()
	nChan := f.NumChannels()
	ngrid := len(grids)

	data, err := transposedMatrix(f.RawSignal)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "bridge", "export", "raw signal", err)
	}
	ref, err := transposedMatrix(refSignalOrZeros(f, samples))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "bridge", "export", "reference signal", err)
	}

	pulseCells := make([]*mat73.Array, ngrid)
	pulseCells[0] = pulseTrainBlock(f.Units, samples)
	for g := 1; g < ngrid; g++ {
		pulseCells[g] = &mat73.Array{Class: mat73.ClassDouble, Dims: []int{0, samples}}
	}

	dischargeRows := make([][]*mat73.Array, ngrid)
	dischargeRows[0] = make([]*mat73.Array, len(f.Units))
	for i, u := range f.Units {
		dischargeRows[0][i] = dischargeRow(u.Discharges)
	}
	for g := 1; g < ngrid; g++ {
		dischargeRows[g] = make([]*mat73.Array, len(f.Units))
		for i := range dischargeRows[g] {
			dischargeRows[g][i] = mat73.RowVector(nil)
		}
	}

	counts := gridChannelCounts(grids, nChan)
	gridnames := make([]*mat73.Array, ngrid)
	muscles := make([]*mat73.Array, ngrid)
	ied := make([]float64, ngrid)
	emgtype := make([]float64, ngrid)
	masks := make([]*mat73.Array, ngrid)
	coords := make([]*mat73.Array, ngrid)
	for g, grid := range grids {
		gridnames[g] = mat73.String(grid.Name)
		muscles[g] = mat73.String(grid.Muscle)
		ied[g] = grid.IEDMillimeters
		emgtype[g] = 1
		masks[g] = zeroColumn(counts[g])
		coords[g] = gridCoordinates(grid, counts[g])
	}

	signal := mat73.Struct(map[string]*mat73.Array{
		"data":           data,
		"fsamp":          mat73.Scalar(f.Metadata.SamplingRate),
		"nChan":          mat73.Scalar(float64(nChan)),
		"ngrid":          mat73.Scalar(float64(ngrid)),
		"gridname":       mat73.CellRow(gridnames),
		"muscle":         mat73.CellRow(muscles),
		"Pulsetrain":     mat73.CellRow(pulseCells),
		"Dischargetimes": mat73.CellMatrix(dischargeRows, len(f.Units)),
		"IED":            mat73.RowVector(ied),
		"target":         ref,
		"path":           ref,
		"emgtype":        mat73.RowVector(emgtype),
		"EMGmask":        mat73.CellRow(masks),
		"coordinates":    mat73.CellRow(coords),
	})
	parameters := mat73.Struct(map[string]*mat73.Array{
		"pathname": mat73.String(filepath.Dir(jsonPath)),
		"filename": mat73.String(filepath.Base(jsonPath)),
	})
	return map[string]*mat73.Array{"signal": signal, "parameters": parameters}, nil
}

// exportGrids returns the grids used for container layout. Files without grid
// metadata export as one synthesized column grid covering every channel.
func exportGrids(f *emgjson.DecompositionFile) []emgjson.GridInfo {
	if len(f.Metadata.Grids) > 0 {
		return f.Metadata.Grids
	}
	n := f.NumChannels()
	if n == 0 {
		n = 1
	}
	return []emgjson.GridInfo{{Name: "GR1", Muscle: "Unknown", Rows: n, Cols: 1, ElectrodeCount: n}}
}

// gridChannelCounts assigns channels to grids in declaration order. A single
// grid claims every channel; with several grids each claims its electrode
// count until the recording runs out of channels.
func gridChannelCounts(grids []emgjson.GridInfo, nChan int) []int {
	counts := make([]int, len(grids))
	if len(grids) == 1 {
		counts[0] = nChan
		return counts
	}
	remaining := nChan
	for i, grid := range grids {
		want := grid.ElectrodeCount
		if want <= 0 {
			want = grid.Rows * grid.Cols
		}
		if want > remaining {
			want = remaining
		}
		counts[i] = want
		remaining -= want
	}
	return counts
}

// pulseTrainBlock builds the nMU x samples matrix for one grid, scaled by the
// block maximum so traces land in the editor's expected range. All-zero
// blocks pass through unscaled.
func pulseTrainBlock(units []emgjson.Unit, samples int) *mat73.Array {
	if len(units) == 0 {
		return &mat73.Array{Class: mat73.ClassDouble, Dims: []int{0, samples}}
	}
	max := 0.0
	for _, u := range units {
		for _, v := range u.PulseTrain {
			if v > max {
				max = v
			}
		}
	}
	rows := make([][]float64, len(units))
	for i, u := range units {
		row := make([]float64, samples)
		copy(row, u.PulseTrain)
		if max > 0 {
			for j := range row {
				row[j] /= max
			}
		}
		rows[i] = row
	}
	m, _ := mat73.FromMatrix(rows)
	return m
}

// dischargeRow converts zero-based discharge indices into the one-based
// double row vector the editor stores.
func dischargeRow(discharges []int64) *mat73.Array {
	row := make([]float64, len(discharges))
	for i, d := range discharges {
		row[i] = float64(d + 1)
	}
	return mat73.RowVector(row)
}

// transposedMatrix flips a time-major block to channels x samples.
func transposedMatrix(timeMajor [][]float64) (*mat73.Array, error) {
	rows, err := transposeRows(timeMajor)
	if err != nil {
		return nil, err
	}
	return mat73.FromMatrix(rows)
}

// transposeRows returns the channel-major rows of a time-major block.
func transposeRows(timeMajor [][]float64) ([][]float64, error) {
	if len(timeMajor) == 0 {
		return nil, nil
	}
	channels := len(timeMajor[0])
	for i, row := range timeMajor {
		if len(row) != channels {
			return nil, fmt.Errorf("row %d has %d channels, want %d", i, len(row), channels)
		}
	}
	rows := make([][]float64, channels)
	for c := range rows {
		row := make([]float64, len(timeMajor))
		for s := range timeMajor {
			row[s] = timeMajor[s][c]
		}
		rows[c] = row
	}
	return rows, nil
}

// refSignalOrZeros returns the reference signal, or a single flat channel
// when the decomposition carries none.
func refSignalOrZeros(f *emgjson.DecompositionFile, samples int) [][]float64 {
	if len(f.RefSignal) > 0 {
		return f.RefSignal
	}
	zeros := make([][]float64, samples)
	for i := range zeros {
		zeros[i] = []float64{0}
	}
	return zeros
}

func zeroColumn(n int) *mat73.Array {
	return mat73.ColumnVector(make([]float64, n))
}

// gridCoordinates builds the count x 2 one-based (row, col) matrix for a
// grid, walking the electrode layout row-major. Slots past the layout stay
// zero.
func gridCoordinates(grid emgjson.GridInfo, count int) *mat73.Array {
	rows, cols := grid.Rows, grid.Cols
	if rows*cols <= 0 {
		rows, cols = count, 1
	}
	coords := make([][]float64, count)
	for i := range coords {
		coords[i] = make([]float64, 2)
	}
	idx := 0
	for r := 1; r <= rows && idx < count; r++ {
		for c := 1; c <= cols && idx < count; c++ {
			coords[idx][0] = float64(r)
			coords[idx][1] = float64(c)
			idx++
		}
	}
	m, _ := mat73.FromMatrix(coords)
	return m
}
