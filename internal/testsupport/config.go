package testsupport

import (
	"path/filepath"
	"testing"

	"emgpipe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// The workfolder directory is created; stage subdirectories are not, so
// tests exercise the on-demand creation path.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.Workfolder = filepath.Join(base, "workfolder")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.Socket = filepath.Join(base, "emgpiped.sock")
	cfg.Paths.Lock = filepath.Join(base, "emgpiped.lock")
	MkdirAll(t, cfg.Paths.Workfolder)

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithPollInterval overrides the tracker reconciliation cadence in seconds.
func WithPollInterval(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Tracker.PollInterval = seconds
	}
}

// WithNtfyTopic points notifications at a test server.
func WithNtfyTopic(topic string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Notifications.NtfyTopic = topic
	}
}
