package bridge

import (
	"fmt"
	"path/filepath"

	"emgpipe/internal/emgjson"
	"emgpipe/internal/logging"
	"emgpipe/internal/mat73"
	"emgpipe/internal/services"
	"emgpipe/internal/workfolder"
)

// ExportGroup combines several decomposition files recorded from the same
// muscle into one container, one grid per member, so the editor can run its
// cross-grid duplicate detection over the combined set. Members must share
// the sampling rate and sample count. An empty outputDir writes next to the
// first member. Returns the path of the written container.
func (b *Bridge) ExportGroup(label string, jsonPaths []string, outputDir string) (string, error) {
	if len(jsonPaths) == 0 {
		return "", services.Wrap(services.ErrValidation, "bridge", "export group",
			fmt.Sprintf("group %q has no member files", label), nil)
	}

	members := make([]*emgjson.DecompositionFile, 0, len(jsonPaths))
	for _, path := range jsonPaths {
		f, err := emgjson.Load(path)
		if err != nil {
			return "", err
		}
		members = append(members, f)
	}

	rate := members[0].Metadata.SamplingRate
	samples := members[0].SignalLength()
	for i, m := range members[1:] {
		if m.Metadata.SamplingRate != rate {
			return "", services.Wrap(services.ErrCountMismatch, "bridge", "export group",
				fmt.Sprintf("grid 0 sampled at %g Hz, grid %d at %g Hz", rate, i+1, m.Metadata.SamplingRate), nil)
		}
		if m.SignalLength() != samples {
			return "", services.Wrap(services.ErrCountMismatch, "bridge", "export group",
				fmt.Sprintf("grid 0 has %d samples, grid %d has %d", samples, i+1, m.SignalLength()), nil)
		}
	}

	if outputDir == "" {
		outputDir = filepath.Dir(jsonPaths[0])
	}
	output := filepath.Join(outputDir, workfolder.GroupExportName(label))

	vars, totalChannels, err := buildGroup(members, label, outputDir)
	if err != nil {
		return "", err
	}
	if err := mat73.WriteFile(output, vars, b.matLevel); err != nil {
		return "", services.Wrap(services.ErrTransient, "bridge", "export group",
			fmt.Sprintf("write %s", filepath.Base(output)), err)
	}
	b.logger.Info("exported multi-grid group",
		logging.String("group", label),
		logging.Int("grids", len(members)),
		logging.Int("channels", totalChannels),
		logging.String("output", filepath.Base(output)))
	return output, nil
}

// buildGroup assembles the combined signal and parameters variables. Each
// member becomes one grid: its channels stack below the previous member's
// and its units keep their own pulse-train scaling.
func buildGroup(members []*emgjson.DecompositionFile, label, outputDir string) (map[string]*mat73.Array, int, error) {
	ngrid := len(members)
	samples := members[0].SignalLength()

	var stacked [][]float64
	for i, m := range members {
		rows, err := transposeRows(m.RawSignal)
		if err != nil {
			return nil, 0, services.Wrap(services.ErrValidation, "bridge", "export group",
				fmt.Sprintf("grid %d raw signal", i), err)
		}
		stacked = append(stacked, rows...)
	}
	data, err := mat73.FromMatrix(stacked)
	if err != nil {
		return nil, 0, services.Wrap(services.ErrValidation, "bridge", "export group", "stack signals", err)
	}
	ref, err := transposedMatrix(refSignalOrZeros(members[0], samples))
	if err != nil {
		return nil, 0, services.Wrap(services.ErrValidation, "bridge", "export group", "reference signal", err)
	}

	maxMU := 0
	for _, m := range members {
		if len(m.Units) > maxMU {
			maxMU = len(m.Units)
		}
	}

	pulseCells := make([]*mat73.Array, ngrid)
	dischargeRows := make([][]*mat73.Array, ngrid)
	gridnames := make([]*mat73.Array, ngrid)
	muscles := make([]*mat73.Array, ngrid)
	ied := make([]float64, ngrid)
	emgtype := make([]float64, ngrid)
	masks := make([]*mat73.Array, ngrid)
	coords := make([]*mat73.Array, ngrid)
	for g, m := range members {
		pulseCells[g] = pulseTrainBlock(m.Units, samples)

		dischargeRows[g] = make([]*mat73.Array, maxMU)
		for j := 0; j < maxMU; j++ {
			if j < len(m.Units) {
				dischargeRows[g][j] = dischargeRow(m.Units[j].Discharges)
			} else {
				dischargeRows[g][j] = mat73.RowVector(nil)
			}
		}

		grid := memberGrid(m)
		gridnames[g] = mat73.String(grid.Name)
		muscles[g] = mat73.String(grid.Muscle)
		ied[g] = grid.IEDMillimeters
		emgtype[g] = 1

		count := grid.ElectrodeCount
		if count <= 0 {
			count = m.NumChannels()
		}
		masks[g] = zeroColumn(count)
		coords[g] = gridCoordinates(grid, count)
	}

	signal := mat73.Struct(map[string]*mat73.Array{
		"data":           data,
		"fsamp":          mat73.Scalar(members[0].Metadata.SamplingRate),
		"nChan":          mat73.Scalar(float64(len(stacked))),
		"ngrid":          mat73.Scalar(float64(ngrid)),
		"gridname":       mat73.CellRow(gridnames),
		"muscle":         mat73.CellRow(muscles),
		"Pulsetrain":     mat73.CellRow(pulseCells),
		"Dischargetimes": mat73.CellMatrix(dischargeRows, maxMU),
		"IED":            mat73.RowVector(ied),
		"target":         ref,
		"path":           ref,
		"emgtype":        mat73.RowVector(emgtype),
		"EMGmask":        mat73.CellRow(masks),
		"coordinates":    mat73.CellRow(coords),
	})
	parameters := mat73.Struct(map[string]*mat73.Array{
		"pathname": mat73.String(outputDir),
		"filename": mat73.String(fmt.Sprintf("%s (multi-grid, %d grids)", label, ngrid)),
	})
	return map[string]*mat73.Array{"signal": signal, "parameters": parameters}, len(stacked), nil
}

// memberGrid returns the grid a member contributes to the combined container.
// Each member file covers one grid; extra grid entries are ignored.
func memberGrid(m *emgjson.DecompositionFile) emgjson.GridInfo {
	return exportGrids(m)[0]
}
