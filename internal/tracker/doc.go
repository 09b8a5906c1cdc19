// Package tracker drives the manual-cleaning stage of the pipeline.
//
// A polling reconciliation loop re-reads the decomposition and results
// folders on a fixed cadence, classifies every work unit by the presence of
// its export, edited, and result files, and hands newly edited containers to
// the format bridge for reverse conversion on a bounded worker pool.
//
// Two invariants are load-bearing:
//   - at most one conversion task is in flight per base name, and
//   - every cycle re-reads the folder tree; only classification deltas are
//     kept in memory between cycles.
//
// The loop also upholds the bridge's consistency invariant by deleting the
// managed result file whenever its edited counterpart disappears.
package tracker
