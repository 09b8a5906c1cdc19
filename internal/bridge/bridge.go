package bridge

import (
	"log/slog"

	"emgpipe/internal/logging"
)

// Default compression levels applied when Options leaves one unset.
const (
	DefaultGzipLevel = 4
	DefaultMatLevel  = 3
)

// Options configures a Bridge.
type Options struct {
	// GzipLevel is the compression level for result JSON files (1-9).
	GzipLevel int
	// MatLevel is the DEFLATE level for exported containers (1-9).
	MatLevel int
	Logger   *slog.Logger
}

// Bridge performs conversions in both directions. It holds no per-workfolder
// state, so one instance serves every conversion the tracker or CLI requests.
type Bridge struct {
	gzipLevel int
	matLevel  int
	logger    *slog.Logger
}

// New builds a Bridge with defaults filled in for unset options.
func New(opts Options) *Bridge {
	gzipLevel := opts.GzipLevel
	if gzipLevel <= 0 {
		gzipLevel = DefaultGzipLevel
	}
	matLevel := opts.MatLevel
	if matLevel <= 0 {
		matLevel = DefaultMatLevel
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Bridge{
		gzipLevel: gzipLevel,
		matLevel:  matLevel,
		logger:    logging.NewComponentLogger(logger, "bridge"),
	}
}
