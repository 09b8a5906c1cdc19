package pipeline

import "emgpipe/internal/workfolder"

// Status represents the session lifecycle of a single pipeline step.
type Status string

const (
	StatusLocked   Status = "locked"
	StatusActive   Status = "active"
	StatusComplete Status = "complete"
)

// Step ordinals. The two gates are the only skippable steps.
const (
	StepCollect        = 1
	StepGrids          = 2
	StepLineNoise      = 3
	StepRMS            = 4
	StepCrop           = 5
	StepChannels       = 6
	StepDecomposition  = 7
	StepMultiGrid      = 8
	GatePreFilter      = 9
	StepCleaning       = 10
	GatePostValidation = 11
	StepResults        = 12

	StepCount = 12
)

// Step is the immutable definition of one pipeline step. Completion is never
// stored here; Reconstruct evaluates it from the output folder every time.
type Step struct {
	Ordinal   int
	Slug      string
	Name      string
	OutputDir string
	Skippable bool
}

var steps = [StepCount]Step{
	{StepCollect, "collect", "Collect original recordings", workfolder.DirOriginalFiles, false},
	{StepGrids, "grids", "Grid association", workfolder.DirAssociatedGrids, false},
	{StepLineNoise, "linenoise", "Line-noise removal", workfolder.DirLineNoiseCleaned, false},
	{StepRMS, "rms", "RMS quality analysis", workfolder.DirAnalysis, false},
	{StepCrop, "crop", "ROI crop", workfolder.DirCroppedSignal, false},
	{StepChannels, "channels", "Channel selection", workfolder.DirChannelSelection, false},
	{StepDecomposition, "decomposition", "Decomposition", workfolder.DirDecomposition, false},
	{StepMultiGrid, "multigrid", "Multi-grid configuration and export", workfolder.DirDecomposition, false},
	{GatePreFilter, "prefilter", "CoVISI pre-filter", workfolder.DirDecomposition, true},
	{StepCleaning, "cleaning", "Manual cleaning", workfolder.DirDecomposition, false},
	{GatePostValidation, "postvalidation", "CoVISI post-validation", workfolder.DirDecomposition, true},
	{StepResults, "results", "Final results", workfolder.DirResults, false},
}

// Steps returns the twelve step definitions in pipeline order.
func Steps() []Step {
	out := make([]Step, StepCount)
	copy(out, steps[:])
	return out
}

// StepByOrdinal looks up a step definition by its 1-based ordinal.
func StepByOrdinal(ordinal int) (Step, bool) {
	if ordinal < 1 || ordinal > StepCount {
		return Step{}, false
	}
	return steps[ordinal-1], true
}

// IsGate reports whether ordinal names one of the two skippable quality gates.
func IsGate(ordinal int) bool {
	return ordinal == GatePreFilter || ordinal == GatePostValidation
}
