// Package ipc provides the control channel between the emgpipe CLI and the
// emgpiped daemon: JSON-RPC over a Unix domain socket.
//
// Request and response DTOs live in types.go so both sides share one wire
// contract. The server wraps a daemon.Daemon; the client wraps a dialed
// connection with per-call convenience methods.
package ipc
