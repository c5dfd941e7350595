package wled

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/wledfleet/wledd/internal/errors"
)

// Client handles HTTP communication with a WLED device.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for the device at addr (host or host:port).
// An optional *http.Client overrides the default 10 second timeout, which
// bounds the first-contact fetch.
func NewClient(addr string, logger *slog.Logger, httpClient ...*http.Client) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	var hc *http.Client
	if len(httpClient) > 0 && httpClient[0] != nil {
		hc = httpClient[0]
	} else {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    "http://" + addr,
		httpClient: hc,
		logger:     logger,
	}
}

// GetInfo retrieves the device's self-description. All I/O failures,
// non-success statuses, and undecodable bodies surface as ErrNetwork.
func (c *Client) GetInfo(ctx context.Context) (*Info, error) {
	url := c.baseURL + "/json/info"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("device: /json/info request failed", "url", url, "error", err)
		return nil, errors.Networkf("failed to get device info: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := errors.Networkf("unexpected status code: %d", resp.StatusCode)
		c.logger.Error("device: /json/info request failed", "url", url, "error", err)
		return nil, err
	}

	var info Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		c.logger.Error("device: /json/info decode failed", "url", url, "error", err)
		return nil, errors.Networkf("failed to decode device info: %v", err)
	}

	c.logger.Debug("device: /json/info response", "url", url, "mac", info.Mac, "name", info.Name, "ver", info.Ver)
	return &info, nil
}
