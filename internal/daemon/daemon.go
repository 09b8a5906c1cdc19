package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"emgpipe/internal/bridge"
	"emgpipe/internal/config"
	"emgpipe/internal/journal"
	"emgpipe/internal/logging"
	"emgpipe/internal/notifications"
	"emgpipe/internal/tracker"
	"emgpipe/internal/workfolder"
)

// Daemon owns the background tracker for one workfolder and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	journal  *journal.Store
	bridge   *bridge.Bridge
	tracker  *tracker.Tracker
	notifier notifications.Service
	layout   workfolder.Layout

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running     bool
	PID         int
	Workfolder  string
	LockPath    string
	JournalPath string
	StartedAt   time.Time
	Snapshot    tracker.Snapshot
	Journal     journal.Counts
}

// New constructs a daemon bound to the configured workfolder.
func New(cfg *config.Config, store *journal.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and journal store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	root := strings.TrimSpace(cfg.Paths.Workfolder)
	if root == "" {
		return nil, errors.New("no workfolder configured; set paths.workfolder")
	}
	layout, err := workfolder.Open(root)
	if err != nil {
		return nil, fmt.Errorf("open workfolder: %w", err)
	}
	if err := layout.EnsureStageDirs(); err != nil {
		return nil, fmt.Errorf("prepare workfolder: %w", err)
	}

	br := bridge.New(bridge.Options{
		GzipLevel: cfg.Bridge.GzipLevel,
		MatLevel:  cfg.Bridge.MatCompressionLevel,
		Logger:    logger,
	})
	notifier := notifications.NewService(cfg)
	tr, err := tracker.New(tracker.Options{
		Layout:             layout,
		Bridge:             br,
		Journal:            store,
		Notifier:           notifier,
		PollInterval:       time.Duration(cfg.Tracker.PollInterval) * time.Second,
		ErrorRetryInterval: time.Duration(cfg.Tracker.ErrorRetryInterval) * time.Second,
		Workers:            cfg.Tracker.Workers,
		Logger:             logger,
	})
	if err != nil {
		return nil, err
	}

	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		journal:  store,
		bridge:   br,
		tracker:  tr,
		notifier: notifier,
		layout:   layout,
		lockPath: cfg.Paths.Lock,
		lock:     flock.New(cfg.Paths.Lock),
	}, nil
}

// Start acquires the daemon lock and launches the tracker loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another emgpiped instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.tracker.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start tracker: %w", err)
	}
	d.cancel = cancel
	d.startedAt = time.Now().UTC()
	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String(logging.FieldWorkfolder, d.layout.Root),
		logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.tracker.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.journal != nil {
		return d.journal.Close()
	}
	return nil
}

// Workfolder returns the bound workfolder root.
func (d *Daemon) Workfolder() string {
	return d.layout.Root
}

// Status reports runtime and stage-tracking state. The tracker snapshot is
// refreshed from disk when the loop is not running so one-shot CLI calls see
// current classifications.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	snapshot := d.tracker.Snapshot()
	if !d.tracker.Running() {
		fresh, err := d.tracker.Reconcile(ctx)
		if err == nil {
			snapshot = fresh
		}
	}
	counts, err := d.journal.Counts(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Running:     d.running.Load(),
		PID:         os.Getpid(),
		Workfolder:  d.layout.Root,
		LockPath:    d.lockPath,
		JournalPath: d.journal.Path(),
		StartedAt:   d.startedAt,
		Snapshot:    snapshot,
		Journal:     counts,
	}, nil
}
