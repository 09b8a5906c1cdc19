package workfolder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SkipMarker records that an optional gate was deliberately skipped, so
// reopening the folder never re-prompts.
type SkipMarker struct {
	Skipped   bool      `json:"skipped"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

// WriteSkipMarker drops a skip marker into dir, creating dir if needed.
func WriteSkipMarker(dir, reason string) error {
	if reason == "" {
		reason = "User skipped this step"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	marker := SkipMarker{Skipped: true, Timestamp: time.Now().UTC(), Reason: reason}
	data, err := json.MarshalIndent(marker, "", "  ")
	if err != nil {
		return fmt.Errorf("encode skip marker: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, SkipMarkerName), data, 0o644)
}

// ReadSkipMarker reports whether dir carries a valid skip marker.
func ReadSkipMarker(dir string) (SkipMarker, bool) {
	data, err := os.ReadFile(filepath.Join(dir, SkipMarkerName))
	if err != nil {
		return SkipMarker{}, false
	}
	var marker SkipMarker
	if err := json.Unmarshal(data, &marker); err != nil {
		return SkipMarker{}, false
	}
	return marker, marker.Skipped
}
