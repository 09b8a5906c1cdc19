// Command emgpipe is the CLI for the HD-sEMG workflow manager. It talks to a
// running emgpiped over the control socket when one is up and falls back to
// operating on the workfolder directly when it is not.
package main
