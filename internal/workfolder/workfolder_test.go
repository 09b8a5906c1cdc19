package workfolder_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"emgpipe/internal/services"
	"emgpipe/internal/workfolder"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestNamingContract(t *testing.T) {
	if got := workfolder.ExportName("run01", false); got != "run01_muedit.mat" {
		t.Errorf("ExportName = %q", got)
	}
	if got := workfolder.ExportName("run01", true); got != "run01_multigrid_muedit.mat" {
		t.Errorf("multi-grid ExportName = %q", got)
	}
	// The editor appends to the whole file name.
	if got := workfolder.EditedName("run01_muedit.mat"); got != "run01_muedit.mat_edited.mat" {
		t.Errorf("EditedName = %q", got)
	}
	if got := workfolder.ResultName("run01"); got != "run01_cleaned.json" {
		t.Errorf("ResultName = %q", got)
	}

	cases := []struct {
		name      string
		isExport  bool
		isEdited  bool
		base      string
		multiGrid bool
	}{
		{"run01_muedit.mat", true, false, "run01", false},
		{"biceps_multigrid_muedit.mat", true, false, "biceps", true},
		{"run01_covisi_filtered_muedit.mat", true, false, "run01_covisi_filtered", false},
		{"run01_muedit.mat_edited.mat", false, true, "run01", false},
		{"biceps_multigrid_muedit.mat_edited.mat", false, true, "biceps", true},
		{"run01.json", false, false, "", false},
		{"notes.txt", false, false, "", false},
	}
	for _, tc := range cases {
		if got := workfolder.IsExport(tc.name); got != tc.isExport {
			t.Errorf("IsExport(%q) = %v, want %v", tc.name, got, tc.isExport)
		}
		if got := workfolder.IsEdited(tc.name); got != tc.isEdited {
			t.Errorf("IsEdited(%q) = %v, want %v", tc.name, got, tc.isEdited)
		}
		switch {
		case tc.isExport:
			base, ok := workfolder.BaseFromExport(tc.name)
			if !ok || base != tc.base {
				t.Errorf("BaseFromExport(%q) = %q, %v", tc.name, base, ok)
			}
			if got := workfolder.IsMultiGridExport(tc.name); got != tc.multiGrid {
				t.Errorf("IsMultiGridExport(%q) = %v", tc.name, got)
			}
		case tc.isEdited:
			base, ok := workfolder.BaseFromEdited(tc.name)
			if !ok || base != tc.base {
				t.Errorf("BaseFromEdited(%q) = %q, %v", tc.name, base, ok)
			}
		}
	}
}

func TestSanitizeGroupName(t *testing.T) {
	cases := map[string]string{
		"Biceps L+R":       "Biceps_LR",
		"  trial 2  ":      "trial_2",
		"fdi_left-01":      "fdi_left-01",
		"weird/../../name": "weirdname",
	}
	for in, want := range cases {
		if got := workfolder.SanitizeGroupName(in); got != want {
			t.Errorf("SanitizeGroupName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMatchOriginalExact(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "run01.json"))
	touch(t, filepath.Join(dir, "run02.json"))

	got, err := workfolder.MatchOriginal(dir, "run01")
	if err != nil {
		t.Fatalf("MatchOriginal: %v", err)
	}
	if filepath.Base(got) != "run01.json" {
		t.Errorf("matched %q", got)
	}
}

func TestMatchOriginalAmbiguous(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "run.json"))
	touch(t, filepath.Join(dir, "run_a.json"))

	_, err := workfolder.MatchOriginal(dir, "run_a_decorated")
	if !errors.Is(err, services.ErrAmbiguousMatch) {
		t.Fatalf("error = %v, want ErrAmbiguousMatch", err)
	}
}

func TestMatchOriginalLoneFallback(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "only.json"))

	got, err := workfolder.MatchOriginal(dir, "Some_Group")
	if err != nil {
		t.Fatalf("MatchOriginal: %v", err)
	}
	if filepath.Base(got) != "only.json" {
		t.Errorf("matched %q", got)
	}
}

func TestMatchOriginalViaGroupings(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "left.json"))
	touch(t, filepath.Join(dir, "right.json"))
	g := workfolder.Groupings{"Biceps L+R": {"left.json", "right.json"}}
	if err := g.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := workfolder.MatchOriginal(dir, "Biceps_LR")
	if err != nil {
		t.Fatalf("MatchOriginal: %v", err)
	}
	if filepath.Base(got) != "left.json" {
		t.Errorf("matched %q, want first group member", got)
	}
}

func TestMatchOriginalMissing(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.json"))
	touch(t, filepath.Join(dir, "b.json"))

	_, err := workfolder.MatchOriginal(dir, "unrelated")
	if !errors.Is(err, services.ErrStructureMissing) {
		t.Fatalf("error = %v, want ErrStructureMissing", err)
	}
}

func TestScanUnits(t *testing.T) {
	root := t.TempDir()
	layout, err := workfolder.Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	decomp := layout.Decomposition()
	touch(t, filepath.Join(decomp, "run01.json"))
	touch(t, filepath.Join(decomp, "run01_muedit.mat"))
	touch(t, filepath.Join(decomp, "run02.json"))
	touch(t, filepath.Join(decomp, "run02_muedit.mat"))
	touch(t, filepath.Join(decomp, "run02_muedit.mat_edited.mat"))
	touch(t, filepath.Join(decomp, "grp_multigrid_muedit.mat"))
	touch(t, filepath.Join(decomp, "grp_multigrid_muedit.mat_edited.mat"))
	touch(t, filepath.Join(decomp, workfolder.MappingFileName))
	touch(t, filepath.Join(layout.Results(), "grp_cleaned.json"))

	units, err := workfolder.ScanUnits(layout)
	if err != nil {
		t.Fatalf("ScanUnits: %v", err)
	}
	if len(units) != 3 {
		t.Fatalf("got %d units, want 3: %+v", len(units), units)
	}
	byBase := make(map[string]workfolder.Unit)
	for _, u := range units {
		byBase[u.BaseName] = u
	}

	u1 := byBase["run01"]
	if u1.HasEdited() || u1.HasResult() {
		t.Errorf("run01 = %+v, want pending", u1)
	}
	if u1.OriginalJSON == "" {
		t.Errorf("run01 missing original JSON")
	}

	u2 := byBase["run02"]
	if !u2.HasEdited() || u2.HasResult() {
		t.Errorf("run02 = %+v, want edited without result", u2)
	}
	if u2.EditedMod.IsZero() {
		t.Errorf("run02 edited mod time not captured")
	}

	g := byBase["grp"]
	if !g.MultiGrid || !g.HasEdited() || !g.HasResult() {
		t.Errorf("grp = %+v, want exported multi-grid", g)
	}
}

func TestScanUnitsMissingFolders(t *testing.T) {
	layout, err := workfolder.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	units, err := workfolder.ScanUnits(layout)
	if err != nil {
		t.Fatalf("ScanUnits: %v", err)
	}
	if len(units) != 0 {
		t.Errorf("got %d units from empty folder", len(units))
	}
}

func TestCountArtifactsExcludesAuxiliary(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.mat"))
	touch(t, filepath.Join(dir, "b.mat"))
	touch(t, filepath.Join(dir, "b.json"))
	touch(t, filepath.Join(dir, ".hidden"))
	touch(t, filepath.Join(dir, workfolder.GroupingsFileName))
	touch(t, filepath.Join(dir, workfolder.SkipMarkerName))

	n, err := workfolder.CountArtifacts(dir, workfolder.HasExt(".mat"))
	if err != nil {
		t.Fatalf("CountArtifacts: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
	all, err := workfolder.CountArtifacts(dir, nil)
	if err != nil {
		t.Fatalf("CountArtifacts: %v", err)
	}
	if all != 3 {
		t.Errorf("unfiltered count = %d, want 3", all)
	}
}

func TestSkipMarkerRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "decomposition")
	if _, ok := workfolder.ReadSkipMarker(dir); ok {
		t.Fatal("marker reported before write")
	}
	if err := workfolder.WriteSkipMarker(dir, "operator decision"); err != nil {
		t.Fatalf("WriteSkipMarker: %v", err)
	}
	marker, ok := workfolder.ReadSkipMarker(dir)
	if !ok {
		t.Fatal("marker not found after write")
	}
	if marker.Reason != "operator decision" || marker.Timestamp.IsZero() {
		t.Errorf("marker = %+v", marker)
	}
}

func TestOpenRejectsMissingRoot(t *testing.T) {
	_, err := workfolder.Open(filepath.Join(t.TempDir(), "absent"))
	if !errors.Is(err, services.ErrStructureMissing) {
		t.Fatalf("error = %v, want ErrStructureMissing", err)
	}
}

func TestEnsureStageDirs(t *testing.T) {
	layout, err := workfolder.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := layout.EnsureStageDirs(); err != nil {
		t.Fatalf("EnsureStageDirs: %v", err)
	}
	for _, name := range workfolder.StageDirs {
		info, err := os.Stat(layout.Dir(name))
		if err != nil || !info.IsDir() {
			t.Errorf("stage dir %s missing: %v", name, err)
		}
	}
}
