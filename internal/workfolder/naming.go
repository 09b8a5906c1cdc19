package workfolder

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"emgpipe/internal/services"
)

// Naming contract for files the pipeline and the external editor exchange.
// The editor appends EditedSuffix to the whole export name, so an edited
// file reads {base}_muedit.mat_edited.mat.
const (
	ExportSuffix          = "_muedit.mat"
	MultiGridExportSuffix = "_multigrid_muedit.mat"
	EditedSuffix          = "_edited.mat"
	ResultSuffix          = "_cleaned.json"
	FilteredJSONSuffix    = "_covisi_filtered.json"

	MappingFileName          = "decomposition_mapping.json"
	GroupingsFileName        = "multigrid_groupings.json"
	PreFilterReportName      = "covisi_pre_filter_report.json"
	PostValidationReportName = "covisi_post_validation_report.json"
	RMSReportCSVName         = "rms_report.csv"
	RMSReportHTMLName        = "rms_report.html"
	SkipMarkerName           = ".skip_marker.json"
)

// ExportName returns the editor container name for a decomposition base.
// Containers holding more than one grid carry the multi-grid suffix.
func ExportName(base string, multiGrid bool) string {
	if multiGrid {
		return base + MultiGridExportSuffix
	}
	return base + ExportSuffix
}

// GroupExportName returns the container name for a named multi-grid group.
func GroupExportName(group string) string {
	return SanitizeGroupName(group) + MultiGridExportSuffix
}

// FilteredJSONName returns the name of the quality-filtered copy of a
// decomposition file.
func FilteredJSONName(base string) string {
	return base + FilteredJSONSuffix
}

// EditedName returns the name the editor produces for an export.
func EditedName(exportName string) string {
	return exportName + EditedSuffix
}

// IsFilteredJSON reports whether name is a quality-filtered copy rather than
// an original decomposition result.
func IsFilteredJSON(name string) bool {
	return strings.HasSuffix(name, FilteredJSONSuffix)
}

// ResultName returns the final cleaned JSON name for a base.
func ResultName(base string) string {
	return base + ResultSuffix
}

// IsExport reports whether name is an editor container produced by the
// pipeline (single or multi-grid) that has not itself been edited.
func IsExport(name string) bool {
	return strings.HasSuffix(name, ExportSuffix) && !IsEdited(name)
}

// IsMultiGridExport reports whether name is a combined multi-grid container.
func IsMultiGridExport(name string) bool {
	return strings.HasSuffix(name, MultiGridExportSuffix) && !IsEdited(name)
}

// IsEdited reports whether name is an editor output file.
func IsEdited(name string) bool {
	return strings.HasSuffix(name, ".mat"+EditedSuffix)
}

// IsResult reports whether name is a managed cleaned-result file.
func IsResult(name string) bool {
	return strings.HasSuffix(name, ResultSuffix)
}

// BaseFromExport recovers the decomposition base from an export name.
func BaseFromExport(name string) (string, bool) {
	switch {
	case strings.HasSuffix(name, MultiGridExportSuffix):
		return strings.TrimSuffix(name, MultiGridExportSuffix), true
	case strings.HasSuffix(name, ExportSuffix):
		return strings.TrimSuffix(name, ExportSuffix), true
	}
	return "", false
}

// BaseFromEdited recovers the decomposition base from an edited file name.
func BaseFromEdited(name string) (string, bool) {
	if !IsEdited(name) {
		return "", false
	}
	return BaseFromExport(strings.TrimSuffix(name, EditedSuffix))
}

// BaseFromResult recovers the base from a cleaned-result file name.
func BaseFromResult(name string) (string, bool) {
	if !strings.HasSuffix(name, ResultSuffix) {
		return "", false
	}
	return strings.TrimSuffix(name, ResultSuffix), true
}

// SanitizeGroupName reduces a group label to filename-safe characters the
// same way the desktop exporter did: keep letters, digits, space, underscore
// and dash, then turn spaces into underscores.
func SanitizeGroupName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(b.String()), " ", "_")
}

// IsAuxiliary reports whether name is a decomposition-folder state or report
// artifact that never counts toward stage artifact totals. The RMS reports are
// not listed: they live in analysis/ where they are the stage artifact.
func IsAuxiliary(name string) bool {
	switch name {
	case MappingFileName, GroupingsFileName, PreFilterReportName,
		PostValidationReportName, SkipMarkerName:
		return true
	}
	return strings.HasPrefix(name, ".")
}

// IsDecompositionJSON reports whether name is a decomposition result JSON,
// excluding state files, reports, and cleaned results.
func IsDecompositionJSON(name string) bool {
	if !strings.HasSuffix(name, ".json") || IsAuxiliary(name) {
		return false
	}
	return !IsResult(name)
}

// MatchOriginal resolves which decomposition JSON a base name belongs to.
// Resolution order: exact {base}.json, the first member of a matching
// multi-grid group, a unique stem prefix, and finally the lone JSON in the
// folder. Two or more surviving candidates never auto-resolve.
func MatchOriginal(decompDir, base string) (string, error) {
	exact := filepath.Join(decompDir, base+".json")
	if _, err := os.Stat(exact); err == nil {
		return exact, nil
	}

	if groups, err := LoadGroupings(decompDir); err == nil {
		if members, ok := groups.Find(base); ok && len(members) > 0 {
			first := filepath.Join(decompDir, members[0])
			if _, err := os.Stat(first); err == nil {
				return first, nil
			}
		}
	}

	entries, err := os.ReadDir(decompDir)
	if err != nil {
		return "", services.Wrap(services.ErrStructureMissing, "workfolder", "match", decompDir, err)
	}
	var jsons, candidates []string
	for _, e := range entries {
		if e.IsDir() || !IsDecompositionJSON(e.Name()) {
			continue
		}
		jsons = append(jsons, e.Name())
		stem := strings.TrimSuffix(e.Name(), ".json")
		if strings.HasPrefix(base, stem) {
			candidates = append(candidates, e.Name())
		}
	}
	sort.Strings(jsons)
	sort.Strings(candidates)
	switch {
	case len(candidates) == 1:
		return filepath.Join(decompDir, candidates[0]), nil
	case len(candidates) > 1:
		return "", services.Wrap(services.ErrAmbiguousMatch, "workfolder", "match",
			fmt.Sprintf("%s matches %s", base, strings.Join(candidates, ", ")), nil)
	case len(jsons) == 1:
		return filepath.Join(decompDir, jsons[0]), nil
	}
	return "", services.Wrap(services.ErrStructureMissing, "workfolder", "match",
		fmt.Sprintf("no decomposition JSON for %s", base), nil)
}
