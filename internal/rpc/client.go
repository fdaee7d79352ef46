package rpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
)

// Client is a worker-channel connection: one request/response pair
// per call, framed as newline-delimited JSON the way the teacher's
// daemon client (internal/rpc/client.go) framed its own RPC calls.
type Client struct {
	conn    net.Conn
	timeout time.Duration
	apiKey  string
}

// Dial connects to the worker channel listening on socketPath.
func Dial(socketPath string, dialTimeout time.Duration) (*Client, error) {
	if dialTimeout <= 0 {
		dialTimeout = 2 * time.Second
	}
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", socketPath, err)
	}
	return &Client{conn: conn, timeout: 30 * time.Second}, nil
}

// SetAPIKey sets the key attached to every subsequent Execute call.
func (c *Client) SetAPIKey(key string) { c.apiKey = key }

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// Execute sends one (operation, args) call and waits for its Response.
func (c *Client) Execute(operation string, args []string) (*Response, error) {
	req := Request{
		RequestID: uuid.NewString(),
		Operation: operation,
		Args:      args,
		APIKey:    c.apiKey,
	}
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("rpc: marshal request: %w", err)
	}

	if c.timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("rpc: set deadline: %w", err)
		}
	}

	writer := bufio.NewWriter(c.conn)
	if _, err := writer.Write(reqJSON); err != nil {
		return nil, fmt.Errorf("rpc: write request: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return nil, fmt.Errorf("rpc: write newline: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return nil, fmt.Errorf("rpc: flush: %w", err)
	}

	reader := bufio.NewReader(c.conn)
	respLine, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("rpc: read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respLine, &resp); err != nil {
		return nil, fmt.Errorf("rpc: unmarshal response: %w", err)
	}
	if !resp.Success {
		return &resp, fmt.Errorf("rpc: %s: %s", resp.ErrorKind, resp.Error)
	}
	return &resp, nil
}

// Hello pings the worker channel for a liveness check.
func (c *Client) Hello() (*Response, error) {
	return c.Execute("hello", nil)
}
