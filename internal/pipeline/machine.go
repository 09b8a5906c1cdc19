package pipeline

import (
	"fmt"
	"log/slog"
	"sync"

	"emgpipe/internal/logging"
	"emgpipe/internal/quality"
	"emgpipe/internal/services"
	"emgpipe/internal/workfolder"
)

// Machine applies the session transition rules on top of Reconstruct. Every
// transition re-reads the folder tree first, so the machine can never advance
// past artifacts that no longer exist.
type Machine struct {
	mu        sync.Mutex
	root      string
	threshold float64
	logger    *slog.Logger
	state     *State
	cursor    int
}

// Options configures a Machine.
type Options struct {
	// CovisiThreshold is recorded in skip reports so a reopened folder shows
	// which threshold the skip decision was made against.
	CovisiThreshold float64
	Logger          *slog.Logger
}

// NewMachine binds a machine to a work folder root and runs the first
// reconstruction pass.
func NewMachine(root string, opts Options) (*Machine, error) {
	threshold := opts.CovisiThreshold
	if threshold <= 0 {
		threshold = quality.DefaultCovisiThreshold
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Machine{
		root:      root,
		threshold: threshold,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.refreshLocked(); err != nil {
		return nil, err
	}
	return m, nil
}

// State returns the most recent reconstruction snapshot.
func (m *Machine) State() *State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns the ordinal of the step the session is working on.
func (m *Machine) Current() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor
}

// Refresh re-runs reconstruction and returns the fresh snapshot.
func (m *Machine) Refresh() (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.refreshLocked(); err != nil {
		return nil, err
	}
	return m.state, nil
}

// refreshLocked rebuilds the snapshot and clamps the session cursor. The
// cursor only ever moves forward here; an explicit ReturnTo may have parked
// it on an earlier, already complete step.
func (m *Machine) refreshLocked() error {
	state, err := Reconstruct(m.root)
	if err != nil {
		return err
	}
	m.state = state
	working := state.ActiveStep()
	if working == 0 {
		working = StepCount
	}
	if m.cursor == 0 || m.cursor > working {
		m.cursor = working
	}
	return nil
}

// Advance moves the session to the target step. Every earlier step must be
// complete on disk; otherwise the first unmet step is reported and nothing
// changes.
func (m *Machine) Advance(target int) (*State, error) {
	if target < 1 || target > StepCount {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "advance",
			fmt.Sprintf("step %d out of range", target), nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.refreshLocked(); err != nil {
		return nil, err
	}
	for _, st := range m.state.Steps[:target-1] {
		if st.Status == StatusComplete {
			continue
		}
		detail := string(st.Status)
		if st.Warning != "" {
			detail = st.Warning
		}
		return nil, services.Wrap(services.ErrPrerequisiteNotMet, "pipeline", "advance",
			fmt.Sprintf("step %d (%s) blocks step %d: %s", st.Ordinal, st.Name, target, detail), nil)
	}
	m.cursor = target
	m.logger.Info("step advanced", logging.Int("step", target))
	return m.state, nil
}

// Skip records an explicit skip decision for one of the two quality gates:
// the report with the skipped flag plus the skip marker, both in the gate's
// output folder. Reopening the folder then finds the gate complete and never
// re-prompts. Skipping an already complete gate is a no-op.
func (m *Machine) Skip(ordinal int, reason string) (*State, error) {
	step, ok := StepByOrdinal(ordinal)
	if !ok || !step.Skippable {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "skip",
			fmt.Sprintf("step %d cannot be skipped", ordinal), nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.refreshLocked(); err != nil {
		return nil, err
	}
	st := m.state.Steps[ordinal-1]
	if st.Status == StatusComplete {
		return m.state, nil
	}
	if st.Status == StatusLocked {
		return nil, services.Wrap(services.ErrPrerequisiteNotMet, "pipeline", "skip",
			fmt.Sprintf("step %d (%s) is locked", ordinal, step.Name), nil)
	}

	layout, err := workfolder.Open(m.root)
	if err != nil {
		return nil, err
	}
	dir, err := layout.EnsureDir(step.OutputDir)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "skip", "prepare gate folder", err)
	}
	reportType := quality.ReportPreFilter
	if ordinal == GatePostValidation {
		reportType = quality.ReportPostValidation
	}
	if err := quality.WriteSkipReport(dir, reportType, m.threshold, reason); err != nil {
		return nil, err
	}
	if err := workfolder.WriteSkipMarker(dir, reason); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "skip", "write skip marker", err)
	}
	m.logger.Info("gate skipped",
		logging.Int("step", ordinal),
		logging.String("reason", reason))

	m.cursor = 0
	if err := m.refreshLocked(); err != nil {
		return nil, err
	}
	return m.state, nil
}

// ReturnTo parks the session on an earlier step. This is the only sanctioned
// regression; completion state on disk is left untouched and re-evaluated.
func (m *Machine) ReturnTo(ordinal int) (*State, error) {
	if ordinal < 1 || ordinal > StepCount {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "return",
			fmt.Sprintf("step %d out of range", ordinal), nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ordinal > m.cursor {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "return",
			fmt.Sprintf("step %d is ahead of the current step %d", ordinal, m.cursor), nil)
	}
	m.cursor = ordinal
	if err := m.refreshLocked(); err != nil {
		return nil, err
	}
	m.logger.Info("returned to step", logging.Int("step", ordinal))
	return m.state, nil
}
