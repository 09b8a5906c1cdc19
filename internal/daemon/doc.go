// Package daemon coordinates the background services behind emgpiped.
//
// The daemon binds to one workfolder, enforces single-instance execution
// with a lock file, runs the stage tracker's reconciliation loop, and
// exposes the operations the IPC surface forwards from the CLI: status,
// step reconstruction, exports, gate skips, and journal queries.
package daemon
