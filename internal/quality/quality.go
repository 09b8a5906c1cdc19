package quality

import (
	"log/slog"

	"emgpipe/internal/bridge"
	"emgpipe/internal/logging"
)

// DefaultRMSDeviationFactor flags channels whose RMS deviates from the
// channel median by more than this factor.
const DefaultRMSDeviationFactor = 3.0

// Options configures an Analyzer. Zero values fall back to defaults.
type Options struct {
	// CovisiThreshold is the CoVISI percentage above which a unit is
	// filtered or flagged.
	CovisiThreshold float64
	// RMSDeviationFactor bounds the acceptable spread around the median
	// channel RMS.
	RMSDeviationFactor float64
	// GzipLevel compresses filtered decomposition copies.
	GzipLevel int
	// Bridge re-exports filtered results for the editing tool.
	Bridge *bridge.Bridge
	// Logger receives analysis progress. Nil discards.
	Logger *slog.Logger
}

// Analyzer runs the quality gates and the RMS channel analysis against a
// work folder and writes their report artifacts.
type Analyzer struct {
	threshold float64
	deviation float64
	gzipLevel int
	bridge    *bridge.Bridge
	logger    *slog.Logger
}

// New builds an Analyzer from options.
func New(opts Options) *Analyzer {
	threshold := opts.CovisiThreshold
	if threshold <= 0 {
		threshold = DefaultCovisiThreshold
	}
	deviation := opts.RMSDeviationFactor
	if deviation <= 0 {
		deviation = DefaultRMSDeviationFactor
	}
	gzipLevel := opts.GzipLevel
	if gzipLevel <= 0 {
		gzipLevel = bridge.DefaultGzipLevel
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	br := opts.Bridge
	if br == nil {
		br = bridge.New(bridge.Options{GzipLevel: gzipLevel, Logger: logger})
	}
	return &Analyzer{
		threshold: threshold,
		deviation: deviation,
		gzipLevel: gzipLevel,
		bridge:    br,
		logger:    logging.NewComponentLogger(logger, "quality"),
	}
}
