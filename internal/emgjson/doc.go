// Package emgjson models the decomposition result interchange format.
//
// A DecompositionFile couples per-unit pulse trains, discharge indices, and
// accuracy values with the shared recording metadata (sampling rate, grid
// geometry, provenance). On disk the format is gzip-wrapped JSON as produced
// by the decomposition suite; plain JSON is accepted on read for manually
// exported files.
//
// Discharge indices are zero-based throughout this package. The format bridge
// owns every conversion to the one-based convention of the external editor.
package emgjson
