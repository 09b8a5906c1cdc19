package ipc

import "time"

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// UnitView is one classified work unit in a status response.
type UnitView struct {
	BaseName string `json:"base_name"`
	Stage    string `json:"stage"`
	InFlight bool   `json:"in_flight"`
}

// StatusResponse represents combined daemon/tracker status information.
type StatusResponse struct {
	Running      bool       `json:"running"`
	PID          int        `json:"pid"`
	Workfolder   string     `json:"workfolder"`
	LockPath     string     `json:"lock_path"`
	JournalPath  string     `json:"journal_path"`
	StartedAt    time.Time  `json:"started_at"`
	Units        []UnitView `json:"units"`
	Total        int        `json:"total"`
	Pending      int        `json:"pending"`
	Edited       int        `json:"edited"`
	Exported     int        `json:"exported"`
	Progress     float64    `json:"progress"`
	LastError    string     `json:"last_error"`
	JournalOK    int        `json:"journal_ok"`
	JournalFails int        `json:"journal_failed"`
}

// StepsRequest fetches the reconstructed pipeline state.
type StepsRequest struct{}

// StepView is one evaluated pipeline step.
type StepView struct {
	Ordinal   int    `json:"ordinal"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	FileCount int    `json:"file_count"`
	Warning   string `json:"warning"`
	Skippable bool   `json:"skippable"`
}

// StepsResponse contains the twelve evaluated steps.
type StepsResponse struct {
	Workfolder    string     `json:"workfolder"`
	Steps         []StepView `json:"steps"`
	LastCompleted int        `json:"last_completed"`
}

// ReconcileRequest forces an immediate reconciliation pass.
type ReconcileRequest struct{}

// ReconcileResponse returns the snapshot after the pass.
type ReconcileResponse struct {
	Total    int     `json:"total"`
	Pending  int     `json:"pending"`
	Edited   int     `json:"edited"`
	Exported int     `json:"exported"`
	Progress float64 `json:"progress"`
}

// ExportRequest converts decomposition JSONs to editor containers. An empty
// base list exports every decomposition JSON.
type ExportRequest struct {
	Bases []string `json:"bases"`
}

// ExportResult is one file outcome inside an export response.
type ExportResult struct {
	BaseName string `json:"base_name"`
	Output   string `json:"output"`
	Error    string `json:"error"`
}

// ExportResponse reports per-file export outcomes.
type ExportResponse struct {
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Results   []ExportResult `json:"results"`
}

// ExportGroupRequest exports a named multi-grid group.
type ExportGroupRequest struct {
	Label string   `json:"label"`
	Bases []string `json:"bases"`
}

// ExportGroupResponse names the written container.
type ExportGroupResponse struct {
	Output string `json:"output"`
}

// SkipGateRequest records a skip decision for a quality gate ("pre" or
// "post").
type SkipGateRequest struct {
	Gate   string `json:"gate"`
	Reason string `json:"reason"`
}

// SkipGateResponse returns the step state after the skip.
type SkipGateResponse struct {
	Steps []StepView `json:"steps"`
}

// JournalRequest lists recent conversion attempts.
type JournalRequest struct {
	OnlyFailed bool `json:"only_failed"`
	Limit      int  `json:"limit"`
}

// JournalEntryView is one journal row.
type JournalEntryView struct {
	ID         int64     `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	BaseName   string    `json:"base_name"`
	Direction  string    `json:"direction"`
	Outcome    string    `json:"outcome"`
	DurationMS int64     `json:"duration_ms"`
	ErrorText  string    `json:"error_text"`
}

// JournalResponse contains journal rows, newest first.
type JournalResponse struct {
	Entries []JournalEntryView `json:"entries"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// StopRequest asks the daemon process to shut down.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}
