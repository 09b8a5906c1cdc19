package quality

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"emgpipe/internal/services"
	"emgpipe/internal/workfolder"
)

// ReportType distinguishes the two gate report artifacts.
type ReportType string

const (
	ReportPreFilter      ReportType = "pre_filter"
	ReportPostValidation ReportType = "post_validation"
)

// FileName returns the report artifact name for a gate.
func (t ReportType) FileName() string {
	if t == ReportPostValidation {
		return workfolder.PostValidationReportName
	}
	return workfolder.PreFilterReportName
}

// envelope is the metadata header stamped on every quality report.
type envelope struct {
	ReportType      ReportType `json:"report_type"`
	Timestamp       string     `json:"timestamp"`
	CovisiThreshold float64    `json:"covisi_threshold"`
}

func newEnvelope(typ ReportType, threshold float64) envelope {
	return envelope{
		ReportType:      typ,
		Timestamp:       time.Now().Format(time.RFC3339),
		CovisiThreshold: threshold,
	}
}

// FileError marks a per-file report entry whose analysis failed without
// aborting the batch.
type FileError struct {
	Error string `json:"error"`
}

// SkipReport records a deliberately skipped gate in the same artifact the
// applied analysis would produce, so reconstruction sees the gate as
// decided either way.
type SkipReport struct {
	envelope
	FilteringSkipped   bool   `json:"filtering_skipped,omitempty"`
	ValidationSkipped  bool   `json:"validation_skipped,omitempty"`
	ThresholdAvailable bool   `json:"threshold_available"`
	FilesCount         int    `json:"files_count"`
	Reason             string `json:"reason"`
}

// WriteSkipReport persists a skip decision for a gate into dir.
func WriteSkipReport(dir string, typ ReportType, threshold float64, reason string) error {
	report := SkipReport{
		envelope:           newEnvelope(typ, threshold),
		ThresholdAvailable: threshold > 0,
		FilesCount:         countInputJSONs(dir),
		Reason:             reason,
	}
	if typ == ReportPostValidation {
		report.ValidationSkipped = true
	} else {
		report.FilteringSkipped = true
	}
	return writeReport(filepath.Join(dir, typ.FileName()), report, typ)
}

func countInputJSONs(dir string) int {
	names, err := listInputJSONs(dir)
	if err != nil {
		return 0
	}
	return len(names)
}

// listInputJSONs returns the decomposition results in dir that the gates
// analyze: result JSONs, excluding state files and filtered copies.
func listInputJSONs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrStructureMissing, "quality", "scan", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if workfolder.IsDecompositionJSON(name) && !workfolder.IsFilteredJSON(name) {
			names = append(names, name)
		}
	}
	return names, nil
}

func writeReport(path string, v any, typ ReportType) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrValidation, "quality", "report",
			fmt.Sprintf("encode %s report", typ), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "quality", "report", path, err)
	}
	return nil
}
