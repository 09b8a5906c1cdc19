package quality

import (
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"

	"emgpipe/internal/bridge"
	"emgpipe/internal/emgjson"
	"emgpipe/internal/logging"
	"emgpipe/internal/services"
	"emgpipe/internal/workfolder"
)

// Gate decisions embedded in a persisted post-validation report.
const (
	ActionAcceptedAll     = "accepted_all"
	ActionFilteredFailing = "filtered_failing"
)

// UnitComparison is the per-unit pre/post record inside a file comparison.
// Undefined values are null.
type UnitComparison struct {
	MUIndex            int      `json:"mu_index"`
	CovisiPre          *float64 `json:"covisi_pre"`
	CovisiPost         *float64 `json:"covisi_post"`
	ImprovementPercent *float64 `json:"improvement_percent"`
	ExceedsThreshold   bool     `json:"exceeds_threshold"`
}

// FileComparison relates one decomposition result to its edited container.
type FileComparison struct {
	PreMUCount            int              `json:"pre_mu_count"`
	PostMUCount           int              `json:"post_mu_count"`
	MUsRemoved            int              `json:"mus_removed"`
	AvgCovisiPre          *float64         `json:"avg_covisi_pre"`
	AvgCovisiPost         *float64         `json:"avg_covisi_post"`
	AvgImprovementPercent *float64         `json:"avg_improvement_percent"`
	MUsExceedingThreshold []int            `json:"mus_exceeding_threshold"`
	ThresholdUsed         float64          `json:"threshold_used"`
	ComparisonDetails     []UnitComparison `json:"comparison_details"`
	JSONPath              string           `json:"json_path,omitempty"`
	EditedPath            string           `json:"edited_path,omitempty"`
}

// ExcludedUnit names one unit a filter decision marked for exclusion.
type ExcludedUnit struct {
	File    string `json:"file"`
	MUIndex int    `json:"mu_index"`
}

// PostValidationReport aggregates the post-validation gate over every
// edited container in a decomposition folder. PerFileReports values are
// FileComparison, or FileError for files whose validation failed.
type PostValidationReport struct {
	envelope
	FilesValidated        int            `json:"files_validated"`
	TotalMUsPre           int            `json:"total_mus_pre"`
	TotalMUsPost          int            `json:"total_mus_post"`
	AvgImprovement        []float64      `json:"avg_improvement"`
	MUsExceedingThreshold int            `json:"mus_exceeding_threshold"`
	PerFileReports        map[string]any `json:"per_file_reports"`
	AvgImprovementOverall *float64       `json:"avg_improvement_overall"`
	Action                string         `json:"action,omitempty"`
	MUsToExclude          []ExcludedUnit `json:"mus_to_exclude,omitempty"`
}

// ComparePrePost builds the per-file comparison between pre- and
// post-cleaning CoVISI values. Detail rows pair units by index over the
// shorter of the two sets.
func ComparePrePost(pre, post []float64, threshold float64) FileComparison {
	comparison := FileComparison{
		PreMUCount:            len(pre),
		PostMUCount:           len(post),
		MUsRemoved:            len(pre) - len(post),
		AvgCovisiPre:          nanMean(pre),
		AvgCovisiPost:         nanMean(post),
		MUsExceedingThreshold: []int{},
		ThresholdUsed:         threshold,
		ComparisonDetails:     []UnitComparison{},
	}
	for i, v := range post {
		if !math.IsNaN(v) && v > threshold {
			comparison.MUsExceedingThreshold = append(comparison.MUsExceedingThreshold, i)
		}
	}
	var improvements []float64
	for i := 0; i < min(len(pre), len(post)); i++ {
		improvement := math.NaN()
		if !math.IsNaN(pre[i]) && !math.IsNaN(post[i]) && pre[i] > 0 {
			improvement = (pre[i] - post[i]) / pre[i] * 100
			improvements = append(improvements, improvement)
		}
		comparison.ComparisonDetails = append(comparison.ComparisonDetails, UnitComparison{
			MUIndex:            i,
			CovisiPre:          nullable(pre[i]),
			CovisiPost:         nullable(post[i]),
			ImprovementPercent: nullable(improvement),
			ExceedsThreshold:   !math.IsNaN(post[i]) && post[i] > threshold,
		})
	}
	comparison.AvgImprovementPercent = nanMean(improvements)
	return comparison
}

// RunPostValidation compares every edited container in dir against its
// source decomposition result. Edited files whose source cannot be
// resolved are skipped; per-file failures land in the report. The report
// is returned unsaved so a gate decision can be attached first.
func (a *Analyzer) RunPostValidation(dir string) (*PostValidationReport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrStructureMissing, "quality", "scan", dir, err)
	}
	report := &PostValidationReport{
		envelope:       newEnvelope(ReportPostValidation, a.threshold),
		AvgImprovement: []float64{},
		PerFileReports: map[string]any{},
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !workfolder.IsEdited(name) {
			continue
		}
		base, ok := workfolder.BaseFromEdited(name)
		if !ok {
			continue
		}
		jsonPath, err := workfolder.MatchOriginal(dir, base)
		if err != nil {
			a.logger.Warn("no source result for edited file",
				logging.String("file", name), logging.Error(err))
			continue
		}
		comparison, err := a.compareFile(jsonPath, filepath.Join(dir, name))
		if err != nil {
			a.logger.Error("post-validation failed",
				logging.String("file", name), logging.Error(err))
			report.PerFileReports[name] = FileError{Error: err.Error()}
			continue
		}
		report.FilesValidated++
		report.TotalMUsPre += comparison.PreMUCount
		report.TotalMUsPost += comparison.PostMUCount
		report.MUsExceedingThreshold += len(comparison.MUsExceedingThreshold)
		if comparison.AvgImprovementPercent != nil {
			report.AvgImprovement = append(report.AvgImprovement, *comparison.AvgImprovementPercent)
		}
		report.PerFileReports[name] = comparison
	}
	report.AvgImprovementOverall = nanMean(report.AvgImprovement)
	return report, nil
}

func (a *Analyzer) compareFile(jsonPath, editedPath string) (FileComparison, error) {
	original, err := emgjson.Load(jsonPath)
	if err != nil {
		return FileComparison{}, err
	}
	edition, err := bridge.ReadEdition(editedPath)
	if err != nil {
		return FileComparison{}, err
	}
	post := make([]float64, len(edition.Discharges))
	for i, discharges := range edition.Discharges {
		post[i] = CoVISI(discharges)
	}
	comparison := ComparePrePost(UnitValues(original.Units), post, a.threshold)
	comparison.JSONPath = jsonPath
	comparison.EditedPath = editedPath
	return comparison, nil
}

// AcceptPostValidation runs the gate and persists the report with every
// unit accepted.
func (a *Analyzer) AcceptPostValidation(dir string) (*PostValidationReport, error) {
	report, err := a.RunPostValidation(dir)
	if err != nil {
		return nil, err
	}
	report.Action = ActionAcceptedAll
	if err := a.persistPostValidation(dir, report); err != nil {
		return nil, err
	}
	return report, nil
}

// FilterPostValidation runs the gate and records every unit still over
// threshold as excluded. The exclusion list is advisory for downstream
// consumers; edited containers are not rewritten.
func (a *Analyzer) FilterPostValidation(dir string) (*PostValidationReport, error) {
	report, err := a.RunPostValidation(dir)
	if err != nil {
		return nil, err
	}
	report.Action = ActionFilteredFailing
	report.MUsToExclude = []ExcludedUnit{}
	for _, name := range slices.Sorted(maps.Keys(report.PerFileReports)) {
		comparison, ok := report.PerFileReports[name].(FileComparison)
		if !ok {
			continue
		}
		for _, idx := range comparison.MUsExceedingThreshold {
			report.MUsToExclude = append(report.MUsToExclude, ExcludedUnit{File: name, MUIndex: idx})
		}
	}
	if err := a.persistPostValidation(dir, report); err != nil {
		return nil, err
	}
	return report, nil
}

func (a *Analyzer) persistPostValidation(dir string, report *PostValidationReport) error {
	path := filepath.Join(dir, ReportPostValidation.FileName())
	if err := writeReport(path, report, ReportPostValidation); err != nil {
		return err
	}
	a.logger.Info("post-validation report written",
		logging.Int("files", report.FilesValidated),
		logging.Int("flagged", report.MUsExceedingThreshold),
		logging.String("action", report.Action))
	return nil
}
