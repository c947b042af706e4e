package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxBody caps how much of a response is read.
const maxBody = 1 << 20

// Error is a non-2xx backend response.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("api: HTTP %d: %s", e.StatusCode, e.Message)
}

// RegisterRequest announces a freshly provisioned device.
type RegisterRequest struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name,omitempty"`
	MAC      string `json:"mac,omitempty"`
	SSID     string `json:"ssid,omitempty"`
}

// Client is a minimal backend client.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient returns a client for baseURL. token, if set, is sent as a
// bearer token.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// RegisterDevice posts req to /devices and returns the stored device.
func (c *Client) RegisterDevice(ctx context.Context, req RegisterRequest) (Device, error) {
	if req.DeviceID == "" {
		return Device{}, fmt.Errorf("api: register: empty device id")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return Device{}, fmt.Errorf("api: encode register request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/devices", body)
	if err != nil {
		return Device{}, err
	}
	dev, err := NormalizeDevice(resp)
	if err != nil {
		return Device{}, err
	}
	slog.Info("[API] device registered", "device", dev.ID, "status", dev.Status)
	return dev, nil
}

// GetDevice fetches one device by id.
func (c *Client) GetDevice(ctx context.Context, id string) (Device, error) {
	resp, err := c.do(ctx, http.MethodGet, "/devices/"+url.PathEscape(id), nil)
	if err != nil {
		return Device{}, err
	}
	return NormalizeDevice(resp)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	slog.Debug("[API] request", "method", method, "path", path)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("api: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}
	return data, nil
}

// errorMessage pulls a human readable message out of an error body.
func errorMessage(body []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		if msg := firstString(obj, "error", "message", "detail"); msg != "" {
			return msg
		}
		if e, ok := obj["error"].(map[string]any); ok {
			return firstString(e, "message")
		}
		return ""
	}
	return strings.TrimSpace(string(body))
}
