package quality

import (
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"emgpipe/internal/emgjson"
	"emgpipe/internal/logging"
	"emgpipe/internal/workfolder"
)

// FileFilterStats describes the filtering outcome for one decomposition
// result. CovisiValues keys are unit indices; undefined values are null.
type FileFilterStats struct {
	OriginalMUCount  int                 `json:"original_mu_count"`
	FilteredMUCount  int                 `json:"filtered_mu_count"`
	RemovedCount     int                 `json:"removed_count"`
	ThresholdUsed    float64             `json:"threshold_used"`
	RemovedMUIndices []int               `json:"removed_mu_indices"`
	CovisiValues     map[string]*float64 `json:"covisi_values"`
}

// PreFilterReport aggregates a pre-filter gate run over a decomposition
// folder. PerFileStats values are FileFilterStats, or FileError for files
// whose filtering failed.
type PreFilterReport struct {
	envelope
	FilesProcessed   int            `json:"files_processed"`
	TotalMUsOriginal int            `json:"total_mus_original"`
	TotalMUsFiltered int            `json:"total_mus_filtered"`
	TotalMUsRemoved  int            `json:"total_mus_removed"`
	PerFileStats     map[string]any `json:"per_file_stats"`
}

// RunPreFilter filters every decomposition result in dir by the CoVISI
// threshold, writes the filtered copies and their editor exports, and
// persists the gate report. Per-file failures land in the report instead
// of aborting the run.
func (a *Analyzer) RunPreFilter(dir string) (*PreFilterReport, error) {
	inputs, err := listInputJSONs(dir)
	if err != nil {
		return nil, err
	}
	report := &PreFilterReport{
		envelope:     newEnvelope(ReportPreFilter, a.threshold),
		PerFileStats: make(map[string]any, len(inputs)),
	}
	for _, name := range inputs {
		stats, err := a.filterFile(dir, name)
		if err != nil {
			a.logger.Error("pre-filter failed",
				logging.String("file", name), logging.Error(err))
			report.PerFileStats[name] = FileError{Error: err.Error()}
			continue
		}
		report.FilesProcessed++
		report.TotalMUsOriginal += stats.OriginalMUCount
		report.TotalMUsFiltered += stats.FilteredMUCount
		report.TotalMUsRemoved += stats.RemovedCount
		report.PerFileStats[name] = stats
	}
	if err := writeReport(filepath.Join(dir, ReportPreFilter.FileName()), report, ReportPreFilter); err != nil {
		return nil, err
	}
	a.logger.Info("pre-filter complete",
		logging.Int("files", report.FilesProcessed),
		logging.Int("removed", report.TotalMUsRemoved))
	return report, nil
}

// filterFile writes the filtered copy of one result next to its input and
// re-exports it for the editing tool. Units whose CoVISI is undefined are
// removed along with the over-threshold ones.
func (a *Analyzer) filterFile(dir, name string) (FileFilterStats, error) {
	f, err := emgjson.Load(filepath.Join(dir, name))
	if err != nil {
		return FileFilterStats{}, err
	}
	values := UnitValues(f.Units)
	stats := FileFilterStats{
		OriginalMUCount:  len(f.Units),
		ThresholdUsed:    a.threshold,
		RemovedMUIndices: []int{},
		CovisiValues:     make(map[string]*float64, len(values)),
	}
	kept := make([]emgjson.Unit, 0, len(f.Units))
	for i, v := range values {
		stats.CovisiValues[strconv.Itoa(i)] = nullable(v)
		if !math.IsNaN(v) && v <= a.threshold {
			kept = append(kept, f.Units[i])
			continue
		}
		stats.RemovedMUIndices = append(stats.RemovedMUIndices, i)
	}
	stats.FilteredMUCount = len(kept)
	stats.RemovedCount = stats.OriginalMUCount - stats.FilteredMUCount

	filtered := *f
	filtered.Units = kept
	filtered.BinaryFiring = emgjson.BuildBinaryFiring(f.SignalLength(), kept)
	base := strings.TrimSuffix(name, ".json")
	outPath := filepath.Join(dir, workfolder.FilteredJSONName(base))
	if err := emgjson.Save(outPath, &filtered, a.gzipLevel); err != nil {
		return FileFilterStats{}, err
	}
	if _, err := a.bridge.Export(outPath); err != nil {
		return FileFilterStats{}, err
	}
	return stats, nil
}
