package ipc

import (
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

const dialTimeout = 2 * time.Second

// Client is a JSON-RPC client for the emgpiped control socket.
type Client struct {
	client *rpc.Client
}

// Dial connects to the daemon socket.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon socket: %w", err)
	}
	return &Client{client: rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Status fetches daemon status.
func (c *Client) Status() (StatusResponse, error) {
	var resp StatusResponse
	err := c.client.Call("Emgpipe.Status", StatusRequest{}, &resp)
	return resp, err
}

// Steps fetches the reconstructed pipeline state.
func (c *Client) Steps() (StepsResponse, error) {
	var resp StepsResponse
	err := c.client.Call("Emgpipe.Steps", StepsRequest{}, &resp)
	return resp, err
}

// Reconcile forces an immediate reconciliation pass.
func (c *Client) Reconcile() (ReconcileResponse, error) {
	var resp ReconcileResponse
	err := c.client.Call("Emgpipe.Reconcile", ReconcileRequest{}, &resp)
	return resp, err
}

// Export converts decomposition JSONs into editor containers.
func (c *Client) Export(bases []string) (ExportResponse, error) {
	var resp ExportResponse
	err := c.client.Call("Emgpipe.Export", ExportRequest{Bases: bases}, &resp)
	return resp, err
}

// ExportGroup exports a named multi-grid group.
func (c *Client) ExportGroup(label string, bases []string) (ExportGroupResponse, error) {
	var resp ExportGroupResponse
	err := c.client.Call("Emgpipe.ExportGroup", ExportGroupRequest{Label: label, Bases: bases}, &resp)
	return resp, err
}

// SkipGate records a skip decision for a quality gate.
func (c *Client) SkipGate(gate, reason string) (SkipGateResponse, error) {
	var resp SkipGateResponse
	err := c.client.Call("Emgpipe.SkipGate", SkipGateRequest{Gate: gate, Reason: reason}, &resp)
	return resp, err
}

// Journal lists recent conversion attempts.
func (c *Client) Journal(onlyFailed bool, limit int) (JournalResponse, error) {
	var resp JournalResponse
	err := c.client.Call("Emgpipe.Journal", JournalRequest{OnlyFailed: onlyFailed, Limit: limit}, &resp)
	return resp, err
}

// TestNotification asks the daemon to send a test notification.
func (c *Client) TestNotification() (TestNotificationResponse, error) {
	var resp TestNotificationResponse
	err := c.client.Call("Emgpipe.TestNotification", TestNotificationRequest{}, &resp)
	return resp, err
}

// Stop asks the daemon process to shut down.
func (c *Client) Stop() (StopResponse, error) {
	var resp StopResponse
	err := c.client.Call("Emgpipe.Stop", StopRequest{}, &resp)
	return resp, err
}
