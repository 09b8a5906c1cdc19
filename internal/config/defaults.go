package config

const (
	defaultLogDir             = "~/.local/share/emgpipe/logs"
	defaultSocketPath         = "~/.local/share/emgpipe/emgpiped.sock"
	defaultLockPath           = "~/.local/share/emgpipe/emgpiped.lock"
	defaultLogRetentionDays   = 60
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultPollInterval       = 2
	defaultErrorRetryInterval = 10
	defaultWorkers            = 2
	defaultGzipLevel          = 4
	defaultMatCompression     = 3
	defaultCovisiThreshold    = 30.0
	defaultRMSDeviation       = 3.0
	defaultNotifyTimeout      = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
			Socket: defaultSocketPath,
			Lock:   defaultLockPath,
		},
		Tracker: Tracker{
			PollInterval:       defaultPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			Workers:            defaultWorkers,
		},
		Bridge: Bridge{
			GzipLevel:           defaultGzipLevel,
			MatCompressionLevel: defaultMatCompression,
		},
		Quality: Quality{
			CovisiThreshold:    defaultCovisiThreshold,
			RMSDeviationFactor: defaultRMSDeviation,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Exports:        true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
