package workfolder

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Unit is the lifecycle record of one export: the decomposition base, its
// editor container, the asynchronously appearing edited file, and the final
// cleaned result. Rebuilt from disk on every scan.
type Unit struct {
	BaseName     string
	ExportName   string
	ExportPath   string
	MultiGrid    bool
	OriginalJSON string
	EditedPath   string
	EditedMod    time.Time
	ResultPath   string
}

// HasEdited reports whether the editor has produced output for this unit.
func (u Unit) HasEdited() bool { return u.EditedPath != "" }

// HasResult reports whether the cleaned result exists.
func (u Unit) HasResult() bool { return u.ResultPath != "" }

// ScanUnits rebuilds the unit set from the decomposition and results
// folders. Missing folders yield an empty set. OriginalJSON is filled only
// for exact stem matches; conversion-time resolution handles the rest.
func ScanUnits(l Layout) ([]Unit, error) {
	decompDir := l.Decomposition()
	entries, err := os.ReadDir(decompDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	edited := make(map[string]os.FileInfo)
	jsons := make(map[string]bool)
	var exports []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case IsEdited(name):
			if info, err := e.Info(); err == nil {
				edited[name] = info
			} else {
				edited[name] = nil
			}
		case IsExport(name):
			exports = append(exports, name)
		case IsDecompositionJSON(name):
			jsons[name] = true
		}
	}
	sort.Strings(exports)

	results := make(map[string]string)
	if resEntries, err := os.ReadDir(l.Results()); err == nil {
		for _, e := range resEntries {
			if e.IsDir() || !IsResult(e.Name()) {
				continue
			}
			if base, ok := BaseFromResult(e.Name()); ok {
				results[base] = filepath.Join(l.Results(), e.Name())
			}
		}
	}

	units := make([]Unit, 0, len(exports))
	for _, name := range exports {
		base, ok := BaseFromExport(name)
		if !ok {
			continue
		}
		u := Unit{
			BaseName:   base,
			ExportName: name,
			ExportPath: filepath.Join(decompDir, name),
			MultiGrid:  IsMultiGridExport(name),
		}
		if jsons[base+".json"] {
			u.OriginalJSON = filepath.Join(decompDir, base+".json")
		}
		editedName := EditedName(name)
		if info, ok := edited[editedName]; ok {
			u.EditedPath = filepath.Join(decompDir, editedName)
			if info != nil {
				u.EditedMod = info.ModTime()
			}
		}
		if path, ok := results[base]; ok {
			u.ResultPath = path
		}
		units = append(units, u)
	}
	return units, nil
}

// CountArtifacts counts regular files in dir whose name passes pred,
// excluding dotfiles and auxiliary state files. A missing dir counts zero.
func CountArtifacts(dir string, pred func(string) bool) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || IsAuxiliary(e.Name()) {
			continue
		}
		if pred == nil || pred(e.Name()) {
			n++
		}
	}
	return n, nil
}

// HasExt builds a predicate matching any of the given extensions
// (case-insensitive, dot included).
func HasExt(exts ...string) func(string) bool {
	return func(name string) bool {
		ext := strings.ToLower(filepath.Ext(name))
		for _, want := range exts {
			if ext == want {
				return true
			}
		}
		return false
	}
}

// ListArtifacts returns the sorted names of regular files in dir passing
// pred, with dotfiles and auxiliary files excluded.
func ListArtifacts(dir string, pred func(string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || IsAuxiliary(e.Name()) {
			continue
		}
		if pred == nil || pred(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// FileExists reports whether path names an existing regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
