package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/caleywoods/wayfindr/internal/monitor"
	"github.com/caleywoods/wayfindr/pkg/core"
)

// Client reads the wayfindr server's HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the server is reachable.
func (c *Client) Healthcheck() error {
	resp, err := c.httpClient.Get(c.baseURL + HealthPath)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// SharedWaypoints fetches the server's shared set.
func (c *Client) SharedWaypoints() ([]core.Waypoint, error) {
	var list []core.Waypoint
	if err := c.getJSON(WaypointsPath, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Status fetches the server's monitor status.
func (c *Client) Status() (monitor.Status, error) {
	var st monitor.Status
	err := c.getJSON(StatusPath, &st)
	return st, err
}

func (c *Client) getJSON(path string, v any) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
