// Package bridge converts decomposition results between the pipeline's JSON
// representation and the MATLAB 7.3 container the external editing tool reads
// and writes. Forward conversion builds the tool's signal/parameters layout
// from a DecompositionFile; reverse conversion folds manual edits back into a
// result JSON while preserving every field the editor does not own.
package bridge
