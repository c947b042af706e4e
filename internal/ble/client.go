package ble

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ClientOptions configures the BLE client behavior.
type ClientOptions struct {
	ConnectAttempts int           // attempts before Connect gives up
	ReconnectMax    int           // max backoff between attempts, in seconds
	ConnectTimeout  time.Duration // per-attempt connect timeout
}

// DefaultClientOptions returns sensible defaults.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		ConnectAttempts: 3,
		ReconnectMax:    8,
		ConnectTimeout:  10 * time.Second,
	}
}

// Client owns the single live BLE connection of a provisioning session.
// Connecting to a different device first drops the current one.
type Client struct {
	adapter Adapter
	opts    ClientOptions

	mu        sync.Mutex
	conn      Connection
	addr      string
	connected bool
}

// NewClient creates a BLE client on top of adapter.
func NewClient(adapter Adapter, opts ClientOptions) *Client {
	if opts.ConnectAttempts <= 0 {
		opts.ConnectAttempts = 3
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = 8
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	return &Client{
		adapter: adapter,
		opts:    opts,
	}
}

// backoffDelay returns the reconnection delay for attempt n, capped at maxSeconds.
func backoffDelay(attempt int, maxSeconds int) time.Duration {
	max := time.Duration(maxSeconds) * time.Second
	if attempt >= 30 {
		return max
	}
	delay := time.Duration(1<<uint(attempt)) * time.Second
	if delay > max {
		return max
	}
	return delay
}

// Connect establishes a connection to addr, retrying with capped exponential
// backoff. If the client is already connected to addr the live connection is
// returned. The returned Connection's Disconnect goes through the client.
func (c *Client) Connect(ctx context.Context, addr string) (Connection, error) {
	c.mu.Lock()
	if c.connected && c.addr == addr {
		c.mu.Unlock()
		return &managedConnection{Connection: c.conn, client: c}, nil
	}
	c.mu.Unlock()

	if err := c.Disconnect(); err != nil {
		slog.Warn("[BLE] dropping previous connection failed", "error", err)
	}

	if err := c.adapter.Enable(); err != nil {
		return nil, fmt.Errorf("ble: enable adapter: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.opts.ConnectAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt-1, c.opts.ReconnectMax)
			slog.Info("[BLE] connect backoff", "attempt", attempt+1, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("ble: connect to %s: %w", addr, ctx.Err())
			case <-time.After(delay):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
		conn, err := c.adapter.Connect(attemptCtx, addr)
		cancel()
		if err != nil {
			lastErr = err
			slog.Warn("[BLE] connect failed", "mac", addr, "error", err, "attempt", attempt+1)
			if ctx.Err() != nil {
				return nil, fmt.Errorf("ble: connect to %s: %w", addr, ctx.Err())
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.addr = addr
		c.connected = true
		c.mu.Unlock()

		conn.OnDisconnect(func() {
			slog.Warn("[BLE] disconnected", "mac", addr)
			c.setDisconnected(conn)
		})

		slog.Info("[BLE] connected", "mac", addr)
		return &managedConnection{Connection: conn, client: c}, nil
	}
	return nil, fmt.Errorf("ble: connect to %s after %d attempts: %w", addr, c.opts.ConnectAttempts, lastErr)
}

// setDisconnected clears the state if conn is still the current connection.
func (c *Client) setDisconnected(conn Connection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		return
	}
	c.connected = false
	c.conn = nil
	c.addr = ""
}

// IsConnectedTo reports whether the client holds a live connection to addr.
func (c *Client) IsConnectedTo(addr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && c.addr == addr
}

// Disconnect drops the current connection, if any. Safe to call repeatedly.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	addr := c.addr
	c.conn = nil
	c.addr = ""
	c.connected = false
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.Disconnect(); err != nil {
		return fmt.Errorf("ble: disconnect %s: %w", addr, err)
	}
	slog.Info("[BLE] disconnected", "mac", addr)
	return nil
}

// managedConnection routes Disconnect through the owning client so its
// state stays consistent.
type managedConnection struct {
	Connection
	client *Client
}

func (m *managedConnection) Disconnect() error {
	m.client.mu.Lock()
	current := m.client.conn == m.Connection
	m.client.mu.Unlock()
	if !current {
		return nil
	}
	return m.client.Disconnect()
}
