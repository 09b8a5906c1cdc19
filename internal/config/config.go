package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory, socket, and workfolder configuration.
type Paths struct {
	// Workfolder is the default workfolder root used when a command does
	// not name one explicitly.
	Workfolder string `toml:"workfolder"`
	LogDir     string `toml:"log_dir"`
	Socket     string `toml:"socket"`
	Lock       string `toml:"lock"`
}

// Tracker contains configuration for the background reconciliation loop.
type Tracker struct {
	// PollInterval is the reconciliation cadence in seconds.
	PollInterval int `toml:"poll_interval"`
	// ErrorRetryInterval is the wait in seconds after a cycle-level failure.
	ErrorRetryInterval int `toml:"error_retry_interval"`
	// Workers bounds the number of concurrent bridge conversions.
	Workers int `toml:"workers"`
}

// Bridge contains configuration for format conversions.
type Bridge struct {
	// GzipLevel is the compression level for result JSON files (1-9).
	GzipLevel int `toml:"gzip_level"`
	// MatCompressionLevel is the DEFLATE level for exported containers (1-9).
	MatCompressionLevel int `toml:"mat_compression_level"`
}

// Quality contains thresholds for the optional quality gates.
type Quality struct {
	// CovisiThreshold is the CoVISI percentage above which a unit is
	// filtered at the pre-filter gate.
	CovisiThreshold float64 `toml:"covisi_threshold"`
	// RMSDeviationFactor flags channels whose RMS deviates from the median
	// by more than this factor.
	RMSDeviationFactor float64 `toml:"rms_deviation_factor"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Exports        bool   `toml:"exports"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for emgpipe.
//
// Configuration sections by subsystem:
//   - Paths: workfolder root, log directory, daemon socket and lock
//   - Tracker: reconciliation cadence and worker pool size
//   - Bridge: compression levels for both container directions
//   - Quality: CoVISI and RMS gate thresholds
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Tracker       Tracker       `toml:"tracker"`
	Bridge        Bridge        `toml:"bridge"`
	Quality       Quality       `toml:"quality"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/emgpipe/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("emgpipe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.LogDir}
	if sock := strings.TrimSpace(c.Paths.Socket); sock != "" {
		dirs = append(dirs, filepath.Dir(sock))
	}
	if lock := strings.TrimSpace(c.Paths.Lock); lock != "" {
		dirs = append(dirs, filepath.Dir(lock))
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
