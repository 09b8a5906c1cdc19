package pipeline

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"emgpipe/internal/workfolder"
)

// StepState is one evaluated row of the pipeline: the step definition plus
// the status derived from disk, the artifact count in its output folder, and
// an optional inconsistency warning.
type StepState struct {
	Step
	Status    Status
	FileCount int
	Warning   string
}

// State is the result of one reconstruction pass over a work folder.
type State struct {
	Root          string
	Steps         []StepState
	Units         []workfolder.Unit
	LastCompleted int
}

// StepState returns the evaluated state for a 1-based ordinal.
func (s *State) StepState(ordinal int) (StepState, bool) {
	if s == nil || ordinal < 1 || ordinal > len(s.Steps) {
		return StepState{}, false
	}
	return s.Steps[ordinal-1], true
}

// ActiveStep returns the ordinal of the step currently unlocked for work, or
// 0 when every step is complete.
func (s *State) ActiveStep() int {
	for _, st := range s.Steps {
		if st.Status == StatusActive {
			return st.Ordinal
		}
	}
	return 0
}

// Done reports whether the final step is complete.
func (s *State) Done() bool {
	return s != nil && s.LastCompleted == StepCount
}

// evaluation is the per-step result before statuses are assigned in order.
type evaluation struct {
	satisfied bool
	count     int
	warning   string
}

// Reconstruct derives the pipeline state for a work folder from its tree
// alone. It never writes and never aborts on a partially populated folder:
// missing stage directories count as empty, and an unreadable one degrades
// its step with a warning instead of failing the pass. Two passes over an
// unmodified tree yield identical states.
func Reconstruct(root string) (*State, error) {
	layout, err := workfolder.Open(root)
	if err != nil {
		return nil, err
	}

	units, unitsErr := workfolder.ScanUnits(layout)

	evals := [StepCount]evaluation{}
	matFiles := workfolder.HasExt(".mat")

	evals[StepCollect-1] = countStep(layout.OriginalFiles(), matFiles, 1)
	evals[StepGrids-1] = countStep(layout.AssociatedGrids(), matFiles, 1)
	evals[StepLineNoise-1] = pairedStep(layout.LineNoiseCleaned(), matFiles, evals[StepGrids-1].count, "grid file")
	evals[StepRMS-1] = countStep(layout.Analysis(), workfolder.HasExt(".csv", ".png", ".txt", ".html"), 1)
	evals[StepCrop-1] = countStep(layout.CroppedSignal(), matFiles, 1)
	evals[StepChannels-1] = countStep(layout.ChannelSelection(), matFiles, 1)
	evals[StepDecomposition-1] = evaluateDecomposition(layout, evals[StepChannels-1].count)
	evals[StepMultiGrid-1] = evaluateMultiGrid(layout)
	evals[GatePreFilter-1] = evaluateGate(layout, workfolder.PreFilterReportName)
	evals[StepCleaning-1] = evaluateCleaning(units, unitsErr)
	evals[GatePostValidation-1] = evaluateGate(layout, workfolder.PostValidationReportName)
	evals[StepResults-1] = evaluateResults(layout, units)

	state := &State{Root: layout.Root, Units: units}
	prevComplete := true
	for i, ev := range evals {
		st := StepState{Step: steps[i], FileCount: ev.count, Warning: ev.warning}
		switch {
		case prevComplete && ev.satisfied:
			st.Status = StatusComplete
			state.LastCompleted = st.Ordinal
		case prevComplete:
			st.Status = StatusActive
			prevComplete = false
		default:
			st.Status = StatusLocked
		}
		state.Steps = append(state.Steps, st)
	}
	return state, nil
}

// countStep satisfies when the folder holds at least min matching artifacts.
func countStep(dir string, pred func(string) bool, min int) evaluation {
	n, err := workfolder.CountArtifacts(dir, pred)
	if err != nil {
		return evaluation{warning: fmt.Sprintf("cannot read %s: %v", filepath.Base(dir), err)}
	}
	return evaluation{satisfied: n >= min, count: n}
}

// pairedStep additionally requires a 1:1 count with the producing step.
func pairedStep(dir string, pred func(string) bool, want int, unit string) evaluation {
	ev := countStep(dir, pred, 1)
	if ev.warning != "" || ev.count == 0 {
		return ev
	}
	if ev.count != want {
		ev.satisfied = false
		ev.warning = fmt.Sprintf("count mismatch: %d file(s) for %d %s(s)", ev.count, want, unit)
	}
	return ev
}

// evaluateDecomposition counts decomposition JSONs against the channel files.
// Filtered copies written by the pre-filter gate live in the same directory
// and are not decomposition outputs, so they stay out of the count.
func evaluateDecomposition(layout workfolder.Layout, channelCount int) evaluation {
	dir := layout.Decomposition()
	n, err := workfolder.CountArtifacts(dir, func(name string) bool {
		return workfolder.IsDecompositionJSON(name) && !workfolder.IsFilteredJSON(name)
	})
	if err != nil {
		return evaluation{warning: fmt.Sprintf("cannot read %s: %v", workfolder.DirDecomposition, err)}
	}
	ev := evaluation{count: n}
	if n == 0 {
		return ev
	}
	hasMapping := workfolder.FileExists(filepath.Join(dir, workfolder.MappingFileName))
	switch {
	case n != channelCount:
		ev.warning = fmt.Sprintf("count mismatch: %d result(s) for %d channel file(s)", n, channelCount)
	case !hasMapping:
		ev.warning = fmt.Sprintf("%s missing", workfolder.MappingFileName)
	default:
		ev.satisfied = true
	}
	return ev
}

// evaluateMultiGrid requires the groupings record plus an existing export for
// every grouped and ungrouped decomposition file. Ungrouped files may carry
// either the single-grid or the multi-grid export name, matching what the
// exporter writes for files that hold several grids themselves.
func evaluateMultiGrid(layout workfolder.Layout) evaluation {
	dir := layout.Decomposition()
	exports, err := workfolder.CountArtifacts(dir, workfolder.IsExport)
	if err != nil {
		return evaluation{warning: fmt.Sprintf("cannot read %s: %v", workfolder.DirDecomposition, err)}
	}
	ev := evaluation{count: exports}

	if !workfolder.FileExists(filepath.Join(dir, workfolder.GroupingsFileName)) {
		return ev
	}
	groupings, err := workfolder.LoadGroupings(dir)
	if err != nil {
		ev.warning = err.Error()
		return ev
	}
	jsons, err := workfolder.ListArtifacts(dir, workfolder.IsDecompositionJSON)
	if err != nil {
		ev.warning = fmt.Sprintf("cannot read %s: %v", workfolder.DirDecomposition, err)
		return ev
	}
	if len(jsons) == 0 {
		return ev
	}

	var missing []string
	inGroup := make(map[string]bool)
	for _, label := range groupings.Labels() {
		for _, member := range groupings[label] {
			inGroup[member] = true
		}
		name := workfolder.GroupExportName(label)
		if !workfolder.FileExists(filepath.Join(dir, name)) {
			missing = append(missing, name)
		}
	}
	for _, jsonName := range jsons {
		if inGroup[jsonName] {
			continue
		}
		base := strings.TrimSuffix(jsonName, ".json")
		single := workfolder.ExportName(base, false)
		multi := workfolder.ExportName(base, true)
		if !workfolder.FileExists(filepath.Join(dir, single)) &&
			!workfolder.FileExists(filepath.Join(dir, multi)) {
			missing = append(missing, single)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		ev.warning = "missing export(s): " + strings.Join(missing, ", ")
		return ev
	}
	ev.satisfied = true
	return ev
}

// evaluateGate completes on the persisted report, which records either the
// gate decision or the explicit skip.
func evaluateGate(layout workfolder.Layout, reportName string) evaluation {
	if workfolder.FileExists(filepath.Join(layout.Decomposition(), reportName)) {
		return evaluation{satisfied: true, count: 1}
	}
	return evaluation{}
}

func evaluateCleaning(units []workfolder.Unit, unitsErr error) evaluation {
	if unitsErr != nil {
		return evaluation{warning: fmt.Sprintf("cannot scan work units: %v", unitsErr)}
	}
	edited := 0
	for _, u := range units {
		if u.HasEdited() {
			edited++
		}
	}
	return evaluation{
		satisfied: len(units) > 0 && edited == len(units),
		count:     edited,
	}
}

func evaluateResults(layout workfolder.Layout, units []workfolder.Unit) evaluation {
	n, err := workfolder.CountArtifacts(layout.Results(), workfolder.IsResult)
	if err != nil {
		return evaluation{warning: fmt.Sprintf("cannot read %s: %v", workfolder.DirResults, err)}
	}
	ev := evaluation{count: n}
	if n == 0 {
		return ev
	}
	edited := 0
	for _, u := range units {
		if u.HasEdited() {
			edited++
		}
	}
	if n != edited {
		ev.warning = fmt.Sprintf("count mismatch: %d result(s) for %d edited file(s)", n, edited)
		return ev
	}
	ev.satisfied = true
	return ev
}
