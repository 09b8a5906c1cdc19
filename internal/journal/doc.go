// Package journal persists an append-only record of format-bridge
// conversion attempts in SQLite.
//
// The journal is an audit surface for the CLI and the daemon status view.
// It is never consulted when pipeline state is reconstructed; the work
// folder tree stays the single source of truth.
package journal
