package workfolder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Groupings maps a multi-grid group label to its member decomposition JSON
// file names, persisted as multigrid_groupings.json inside the decomposition
// folder. Member order is the export order and is preserved.
type Groupings map[string][]string

// LoadGroupings reads the groupings state file from dir. A missing file is
// an empty grouping, not an error.
func LoadGroupings(dir string) (Groupings, error) {
	data, err := os.ReadFile(filepath.Join(dir, GroupingsFileName))
	if os.IsNotExist(err) {
		return Groupings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read groupings: %w", err)
	}
	var g Groupings
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse %s: %w", GroupingsFileName, err)
	}
	return g, nil
}

// Save writes the groupings state file into dir.
func (g Groupings) Save(dir string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encode groupings: %w", err)
	}
	path := filepath.Join(dir, GroupingsFileName)
	tmp, err := os.CreateTemp(dir, ".groupings-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Find returns the members of the group whose sanitized label equals base.
func (g Groupings) Find(base string) ([]string, bool) {
	for label, members := range g {
		if SanitizeGroupName(label) == base {
			return members, true
		}
	}
	return nil, false
}

// Labels returns the group labels in sorted order.
func (g Groupings) Labels() []string {
	labels := make([]string, 0, len(g))
	for label := range g {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
