// Package quality computes the CoVISI and RMS measures behind the
// pipeline's two gates and the channel-noise analysis step, and writes
// their report artifacts into the work folder.
package quality
