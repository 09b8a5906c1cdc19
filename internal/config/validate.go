package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTracker(); err != nil {
		return err
	}
	if err := c.validateBridge(); err != nil {
		return err
	}
	if err := c.validateQuality(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTracker() error {
	if c.Tracker.PollInterval < 1 {
		return errors.New("tracker.poll_interval must be at least 1 second")
	}
	if c.Tracker.Workers < 1 {
		return errors.New("tracker.workers must be at least 1")
	}
	return nil
}

func (c *Config) validateBridge() error {
	if c.Bridge.GzipLevel < 1 || c.Bridge.GzipLevel > 9 {
		return fmt.Errorf("bridge.gzip_level must be between 1 and 9, got %d", c.Bridge.GzipLevel)
	}
	if c.Bridge.MatCompressionLevel < 1 || c.Bridge.MatCompressionLevel > 9 {
		return fmt.Errorf("bridge.mat_compression_level must be between 1 and 9, got %d", c.Bridge.MatCompressionLevel)
	}
	return nil
}

func (c *Config) validateQuality() error {
	if c.Quality.CovisiThreshold <= 0 {
		return errors.New("quality.covisi_threshold must be positive")
	}
	if c.Quality.RMSDeviationFactor <= 0 {
		return errors.New("quality.rms_deviation_factor must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
