package workfolder

import (
	"fmt"
	"os"
	"path/filepath"

	"emgpipe/internal/services"
)

// Fixed subdirectories of a work folder. Each pipeline stage writes only its
// own folder.
const (
	DirOriginalFiles    = "original_files"
	DirAssociatedGrids  = "associated_grids"
	DirLineNoiseCleaned = "line_noise_cleaned"
	DirAnalysis         = "analysis"
	DirCroppedSignal    = "cropped_signal"
	DirChannelSelection = "channelselection"
	DirDecomposition    = "decomposition"
	DirResults          = "decomposition_results"
)

// StageDirs lists every fixed subdirectory in pipeline order.
var StageDirs = []string{
	DirOriginalFiles,
	DirAssociatedGrids,
	DirLineNoiseCleaned,
	DirAnalysis,
	DirCroppedSignal,
	DirChannelSelection,
	DirDecomposition,
	DirResults,
}

// Layout addresses the subdirectories of one work folder root.
type Layout struct {
	Root string
}

// Open binds a layout to an existing directory. The root must exist; the
// stage subdirectories may not yet.
func Open(root string) (Layout, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, fmt.Errorf("resolve workfolder path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Layout{}, services.Wrap(services.ErrStructureMissing, "workfolder", "open", abs, err)
	}
	if !info.IsDir() {
		return Layout{}, services.Wrap(services.ErrStructureMissing, "workfolder", "open",
			fmt.Sprintf("%s is not a directory", abs), nil)
	}
	return Layout{Root: abs}, nil
}

// Dir returns the absolute path of a named subdirectory.
func (l Layout) Dir(name string) string {
	return filepath.Join(l.Root, name)
}

func (l Layout) OriginalFiles() string    { return l.Dir(DirOriginalFiles) }
func (l Layout) AssociatedGrids() string  { return l.Dir(DirAssociatedGrids) }
func (l Layout) LineNoiseCleaned() string { return l.Dir(DirLineNoiseCleaned) }
func (l Layout) Analysis() string         { return l.Dir(DirAnalysis) }
func (l Layout) CroppedSignal() string    { return l.Dir(DirCroppedSignal) }
func (l Layout) ChannelSelection() string { return l.Dir(DirChannelSelection) }
func (l Layout) Decomposition() string    { return l.Dir(DirDecomposition) }
func (l Layout) Results() string          { return l.Dir(DirResults) }

// EnsureStageDirs creates any missing stage subdirectories. Folders added by
// later tool versions (analysis, decomposition_results) appear on demand, so
// a partial tree is normal rather than an error.
func (l Layout) EnsureStageDirs() error {
	for _, name := range StageDirs {
		if err := os.MkdirAll(l.Dir(name), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
	}
	return nil
}

// EnsureDir creates one named subdirectory if missing and returns its path.
func (l Layout) EnsureDir(name string) (string, error) {
	dir := l.Dir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	return dir, nil
}
