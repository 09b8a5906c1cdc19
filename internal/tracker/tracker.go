package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"emgpipe/internal/bridge"
	"emgpipe/internal/journal"
	"emgpipe/internal/logging"
	"emgpipe/internal/notifications"
	"emgpipe/internal/workfolder"
)

// Defaults applied when Options leaves a field unset.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultErrorRetry   = 10 * time.Second
	DefaultWorkers      = 2
	taskQueueCapacity   = 64
)

// Stage classifies one work unit by which of its three files exist.
type Stage string

const (
	// StageNotStarted means no editor container has been exported yet.
	StageNotStarted Stage = "not started"
	// StagePending means the export exists and waits for manual edits.
	StagePending Stage = "pending"
	// StageEdited means the editor saved output that awaits reverse
	// conversion.
	StageEdited Stage = "edited"
	// StageExported means the cleaned result JSON exists.
	StageExported Stage = "exported"
)

// Classify derives the stage of one unit from file presence alone.
func Classify(u workfolder.Unit) Stage {
	switch {
	case u.ExportPath == "":
		return StageNotStarted
	case !u.HasEdited():
		return StagePending
	case !u.HasResult():
		return StageEdited
	default:
		return StageExported
	}
}

// UnitStatus is one classified unit inside a snapshot.
type UnitStatus struct {
	BaseName string
	Stage    Stage
	InFlight bool
}

// Snapshot is the tracker's view after one reconciliation pass. Progress
// counts exported units only; "edited" is an intermediate state.
type Snapshot struct {
	Units        []UnitStatus
	Total        int
	Pending      int
	Edited       int
	Exported     int
	InFlight     int
	LastError    string
	ReconciledAt time.Time
}

// Progress returns exported/total in [0,1]; an empty unit set reports 0.
func (s Snapshot) Progress() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Exported) / float64(s.Total)
}

// Options configures a Tracker.
type Options struct {
	Layout             workfolder.Layout
	Bridge             *bridge.Bridge
	Journal            *journal.Store
	Notifier           notifications.Service
	PollInterval       time.Duration
	ErrorRetryInterval time.Duration
	Workers            int
	Logger             *slog.Logger
}

type task struct {
	unit      workfolder.Unit
	requestID string
}

// Tracker owns the reconciliation loop and the conversion worker pool.
type Tracker struct {
	layout     workfolder.Layout
	bridge     *bridge.Bridge
	journal    *journal.Store
	notifier   notifications.Service
	pollEvery  time.Duration
	errorRetry time.Duration
	workers    int
	logger     *slog.Logger

	tasks chan task

	mu           sync.Mutex
	inFlight     map[string]bool
	stages       map[string]Stage
	snapshot     Snapshot
	running      bool
	notifiedDone bool
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// New builds a Tracker. The bridge is required; journal and notifier are
// optional.
func New(opts Options) (*Tracker, error) {
	if opts.Bridge == nil {
		return nil, errors.New("tracker requires a bridge")
	}
	if opts.Layout.Root == "" {
		return nil, errors.New("tracker requires a workfolder layout")
	}
	pollEvery := opts.PollInterval
	if pollEvery <= 0 {
		pollEvery = DefaultPollInterval
	}
	errorRetry := opts.ErrorRetryInterval
	if errorRetry <= 0 {
		errorRetry = DefaultErrorRetry
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Tracker{
		layout:     opts.Layout,
		bridge:     opts.Bridge,
		journal:    opts.Journal,
		notifier:   opts.Notifier,
		pollEvery:  pollEvery,
		errorRetry: errorRetry,
		workers:    workers,
		logger:     logging.NewComponentLogger(logger, "tracker"),
		tasks:      make(chan task, taskQueueCapacity),
		inFlight:   make(map[string]bool),
		stages:     make(map[string]Stage),
	}, nil
}

// Start launches the worker pool and the polling loop.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return errors.New("tracker already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.running = true
	t.mu.Unlock()

	t.wg.Add(t.workers)
	for i := 0; i < t.workers; i++ {
		go t.runWorker(runCtx)
	}
	t.wg.Add(1)
	go t.runLoop(runCtx)

	t.logger.Info("tracker started",
		logging.String(logging.FieldWorkfolder, t.layout.Root),
		logging.Duration("poll_interval", t.pollEvery),
		logging.Int("workers", t.workers))
	return nil
}

// Stop cancels the loop and waits for in-flight conversions to finish.
// Queued tasks that no worker has picked up are abandoned.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	cancel := t.cancel
	t.running = false
	t.cancel = nil
	t.mu.Unlock()

	cancel()
	t.wg.Wait()
	t.logger.Info("tracker stopped")
}

// Running reports whether the loop is active.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Snapshot returns the most recent reconciliation result.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot
}

func (t *Tracker) runLoop(ctx context.Context) {
	defer t.wg.Done()
	ticker := time.NewTicker(t.pollEvery)
	defer ticker.Stop()

	// First pass immediately so a reopened folder converts without waiting
	// a full interval.
	wait := t.cycle(ctx)
	for {
		if wait != t.pollEvery {
			ticker.Reset(wait)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		next := t.cycle(ctx)
		if next != wait {
			ticker.Reset(next)
		}
		wait = next
	}
}

// cycle runs one reconciliation pass and returns the wait before the next.
func (t *Tracker) cycle(ctx context.Context) time.Duration {
	if _, err := t.Reconcile(ctx); err != nil {
		t.logger.Warn("reconciliation failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "reconcile_failed"),
			logging.String(logging.FieldErrorHint, "check workfolder permissions"))
		return t.errorRetry
	}
	return t.pollEvery
}

func (t *Tracker) runWorker(ctx context.Context) {
	defer t.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case tk := <-t.tasks:
			// A picked task runs to completion even during shutdown;
			// conversions are not cancellable mid-flight.
			t.convert(tk)
		}
	}
}
