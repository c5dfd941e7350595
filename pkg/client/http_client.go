// Package client provides an HTTP client for the wledd API, used by
// wledctl and other local tooling.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Device is the API representation of a fleet device.
type Device struct {
	MAC          string    `json:"mac"`
	Address      string    `json:"address"`
	Name         string    `json:"name"`
	CustomName   string    `json:"custom_name,omitempty"`
	OriginalName string    `json:"original_name,omitempty"`
	Hidden       bool      `json:"hidden"`
	Branch       string    `json:"branch"`
	SkipTag      string    `json:"skip_tag,omitempty"`
	LastSeen     time.Time `json:"last_seen"`
	Status       string    `json:"status"`
	Version      string    `json:"version,omitempty"`
	Signal       int       `json:"signal,omitempty"`
	UpdateTag    string    `json:"update_tag,omitempty"`
}

// VersionInfo is the daemon's build information.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// FleetStatus reports the fleet's lifecycle state.
type FleetStatus struct {
	Paused  bool `json:"paused"`
	Devices int  `json:"devices"`
}

// HTTPClient represents an HTTP connection to wledd.
type HTTPClient struct {
	logger  *slog.Logger
	baseURL string
	client  *http.Client
}

// NewHTTP creates a new HTTP client.
func NewHTTP(logger *slog.Logger, baseURL string) *HTTPClient {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	return &HTTPClient{
		logger:  logger,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// request performs an HTTP request and decodes the JSON response.
func (c *HTTPClient) request(method, path string, body any, resp any) error {
	url := c.baseURL + path
	c.logger.Debug("HTTP request", "method", method, "url", url)

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		c.logger.Debug("HTTP error response", "status", httpResp.StatusCode, "body", string(respBody))
		return fmt.Errorf("HTTP error %d: %s", httpResp.StatusCode, apiErrorDetail(respBody))
	}

	if resp != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, resp); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// apiErrorDetail extracts the detail field from an API error body, falling
// back to the raw body.
func apiErrorDetail(body []byte) string {
	var e struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Detail != "" {
		return e.Detail
	}
	return string(body)
}

// GetVersion returns the running daemon's version information.
func (c *HTTPClient) GetVersion() (VersionInfo, error) {
	var resp VersionInfo
	err := c.request("GET", "/api/v1/version", nil, &resp)
	return resp, err
}

// ListDevices returns the fleet's devices. Hidden devices are included when
// all is true.
func (c *HTTPClient) ListDevices(all bool) ([]Device, error) {
	path := "/api/v1/devices"
	if all {
		path += "?all=true"
	}
	var resp []Device
	if err := c.request("GET", path, nil, &resp); err != nil {
		return nil, err
	}
	if resp == nil {
		resp = []Device{}
	}
	return resp, nil
}

// GetDevice returns a specific device by MAC.
func (c *HTTPClient) GetDevice(mac string) (Device, error) {
	var resp Device
	err := c.request("GET", "/api/v1/devices/"+mac, nil, &resp)
	return resp, err
}

// AddDevice registers a device by address.
func (c *HTTPClient) AddDevice(address string) (Device, error) {
	body := map[string]any{"address": address}
	var resp Device
	err := c.request("POST", "/api/v1/devices", body, &resp)
	return resp, err
}

// UpdateDevice patches user-editable settings on a device. Only the keys
// present in settings are changed.
func (c *HTTPClient) UpdateDevice(mac string, settings map[string]any) (Device, error) {
	var resp Device
	err := c.request("PATCH", "/api/v1/devices/"+mac, settings, &resp)
	return resp, err
}

// DeleteDevice removes a device from the registry.
func (c *HTTPClient) DeleteDevice(mac string) error {
	return c.request("DELETE", "/api/v1/devices/"+mac, nil, nil)
}

// SetDeviceState sends a partial state patch (on, brightness) to a device.
func (c *HTTPClient) SetDeviceState(mac string, state map[string]any) error {
	return c.request("POST", "/api/v1/devices/"+mac+"/state", state, nil)
}

// GetFleetStatus returns the fleet's lifecycle state.
func (c *HTTPClient) GetFleetStatus() (FleetStatus, error) {
	var resp FleetStatus
	err := c.request("GET", "/api/v1/fleet", nil, &resp)
	return resp, err
}

// PauseFleet disconnects every device connection without destroying it.
func (c *HTTPClient) PauseFleet() error {
	return c.request("POST", "/api/v1/fleet/pause", nil, nil)
}

// ResumeFleet reconnects every device connection.
func (c *HTTPClient) ResumeFleet() error {
	return c.request("POST", "/api/v1/fleet/resume", nil, nil)
}
