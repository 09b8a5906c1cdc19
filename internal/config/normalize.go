package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTracker()
	c.normalizeBridge()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if wf := strings.TrimSpace(c.Paths.Workfolder); wf != "" {
		if c.Paths.Workfolder, err = expandPath(wf); err != nil {
			return fmt.Errorf("paths.workfolder: %w", err)
		}
	} else {
		c.Paths.Workfolder = ""
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.Socket) == "" {
		c.Paths.Socket = defaultSocketPath
	}
	if c.Paths.Socket, err = expandPath(c.Paths.Socket); err != nil {
		return fmt.Errorf("paths.socket: %w", err)
	}
	if strings.TrimSpace(c.Paths.Lock) == "" {
		c.Paths.Lock = defaultLockPath
	}
	if c.Paths.Lock, err = expandPath(c.Paths.Lock); err != nil {
		return fmt.Errorf("paths.lock: %w", err)
	}
	return nil
}

func (c *Config) normalizeTracker() {
	if c.Tracker.PollInterval <= 0 {
		c.Tracker.PollInterval = defaultPollInterval
	}
	if c.Tracker.ErrorRetryInterval <= 0 {
		c.Tracker.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Tracker.Workers <= 0 {
		c.Tracker.Workers = defaultWorkers
	}
}

func (c *Config) normalizeBridge() {
	if c.Bridge.GzipLevel == 0 {
		c.Bridge.GzipLevel = defaultGzipLevel
	}
	if c.Bridge.MatCompressionLevel == 0 {
		c.Bridge.MatCompressionLevel = defaultMatCompression
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = defaultLogRetentionDays
	}
}
