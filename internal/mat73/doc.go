// Package mat73 reads and writes the MATLAB v7.3 (HDF5) container subset the
// external editing tool produces and consumes.
//
// The writer emits a 512-byte MAT userblock followed by a version-0 HDF5
// superblock, old-style symbol-table groups, and contiguous or single-chunk
// DEFLATE datasets. Cell arrays are datasets of object references into the
// #refs# group, struct values are groups, and every dataset carries the
// MATLAB_class attribute MATLAB expects. The reader additionally handles
// multi-chunk datasets and object header continuations so files saved by
// MATLAB itself load correctly.
//
// Arrays use MATLAB dimension order and column-major element order; the
// dimension reversal against HDF5's row-major layout happens at the codec
// boundary and never leaks to callers.
package mat73
