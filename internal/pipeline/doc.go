// Package pipeline sequences the twelve processing steps of a decomposition
// workfolder and rebuilds their completion state from the folder tree alone.
//
// There is no persisted state file. Reconstruct derives every step's status
// from the artifacts on disk, so externally added or removed files are picked
// up on the next pass. The Machine wraps reconstruction with the session-level
// transition rules: steps unlock strictly in order, the two quality gates may
// be skipped with a recorded decision, and moving backward is an explicit
// user action.
package pipeline
