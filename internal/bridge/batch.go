package bridge

import (
	"path/filepath"
	"strings"
	"time"

	"emgpipe/internal/logging"
)

// FileResult records one conversion inside a batch.
type FileResult struct {
	BaseName string
	Input    string
	Output   string
	Duration time.Duration
	Err      error
}

// BatchReport accumulates per-file outcomes. One failure never aborts the
// sibling conversions; callers inspect Results for the failures.
type BatchReport struct {
	Succeeded int
	Failed    int
	Results   []FileResult
}

// Add folds one result into the report totals.
func (r *BatchReport) Add(result FileResult) {
	if result.Err != nil {
		r.Failed++
	} else {
		r.Succeeded++
	}
	r.Results = append(r.Results, result)
}

// ExportBatch converts every listed decomposition JSON, continuing past
// per-file failures.
func (b *Bridge) ExportBatch(jsonPaths []string) BatchReport {
	var report BatchReport
	for _, path := range jsonPaths {
		start := time.Now()
		output, err := b.Export(path)
		if err != nil {
			b.logger.Error("export failed",
				logging.String("input", filepath.Base(path)),
				logging.Error(err))
		}
		report.Add(FileResult{
			BaseName: strings.TrimSuffix(filepath.Base(path), ".json"),
			Input:    path,
			Output:   output,
			Duration: time.Since(start),
			Err:      err,
		})
	}
	if report.Failed > 0 {
		b.logger.Warn("batch export finished with failures",
			logging.Int("succeeded", report.Succeeded),
			logging.Int("failed", report.Failed))
	}
	return report
}
