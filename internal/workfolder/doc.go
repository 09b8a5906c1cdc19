// Package workfolder defines the fixed on-disk layout of a pipeline work
// folder and the file naming contract shared by the exporter, the stage
// tracker, and state reconstruction. Everything here is derived from the
// folder tree; no state file exists.
package workfolder
