// Package client is the SDK for the local quotabar daemon API. The TUI
// and MCP surfaces talk to the daemon through it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nyxkrage/quotabar/pkg/dashboard"
	"github.com/nyxkrage/quotabar/pkg/engine"
	"github.com/nyxkrage/quotabar/pkg/provider"
	"github.com/nyxkrage/quotabar/pkg/statuspage"
)

// maxAttempts bounds transport-level retries on read endpoints.
const maxAttempts = 3

// Client is the quotabar SDK client.
type Client struct {
	endpoint string
	http     *http.Client
	backoff  BackoffStrategy
}

// NewClient creates a new quotabar client.
// endpoint defaults to "http://127.0.0.1:8590" if empty.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = "http://127.0.0.1:8590"
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		backoff: DefaultBackoff(),
	}
}

// Health is the daemon's liveness response.
type Health struct {
	Status string `json:"status"`
}

// Ping checks the health of the daemon.
func (c *Client) Ping(ctx context.Context) (Health, error) {
	var h Health
	if err := c.getJSON(ctx, "/health", &h); err != nil {
		return Health{}, err
	}
	return h, nil
}

// Usage fetches every provider's current usage view.
func (c *Client) Usage(ctx context.Context) (map[provider.ID]engine.ProviderState, error) {
	var out map[provider.ID]engine.ProviderState
	if err := c.getJSON(ctx, "/v1/usage", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Status fetches the status-page classifications.
func (c *Client) Status(ctx context.Context) (map[provider.ID]statuspage.Status, error) {
	var out map[provider.ID]statuspage.Status
	if err := c.getJSON(ctx, "/v1/status", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Credits fetches the auxiliary credit balance view.
func (c *Client) Credits(ctx context.Context) (engine.CreditsState, error) {
	var out engine.CreditsState
	if err := c.getJSON(ctx, "/v1/credits", &out); err != nil {
		return engine.CreditsState{}, err
	}
	return out, nil
}

// Dashboard fetches the reconciled dashboard view.
func (c *Client) Dashboard(ctx context.Context) (dashboard.View, error) {
	var out dashboard.View
	if err := c.getJSON(ctx, "/v1/dashboard", &out); err != nil {
		return dashboard.View{}, err
	}
	return out, nil
}

// Refresh asks the daemon to run a poll cycle now. The daemon
// deduplicates concurrent cycles, so this is always safe to call.
func (c *Client) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+"/v1/refresh", nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}

// SetInterval changes the daemon's automatic refresh period. 0 switches
// to manual mode.
func (c *Client) SetInterval(ctx context.Context, d time.Duration) error {
	body, err := json.Marshal(map[string]string{"interval": d.String()})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+"/v1/interval", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}

// getJSON fetches path and decodes into out, retrying transport errors
// and 5xx responses with backoff.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff.Next(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, "GET", c.endpoint+path, nil)
		if err != nil {
			return err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("daemon unreachable: %w", err)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("upstream error: %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}
	return lastErr
}
