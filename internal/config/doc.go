// Package config loads, normalizes, and validates emgpipe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files from the standard location or a project
// emgpipe.toml. The Config type centralizes every knob the daemon and CLI
// need: the workfolder root, tracker cadence, compression levels, gate
// thresholds, and logging output.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
