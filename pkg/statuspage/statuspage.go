// Package statuspage fetches and normalizes provider status pages that
// follow the common /api/v2/status.json shape.
package statuspage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nyxkrage/quotabar/pkg/provider"
)

// Indicator is a normalized status severity bucket.
type Indicator string

const (
	IndicatorNone        Indicator = "none"
	IndicatorMinor       Indicator = "minor"
	IndicatorMajor       Indicator = "major"
	IndicatorCritical    Indicator = "critical"
	IndicatorMaintenance Indicator = "maintenance"
	IndicatorUnknown     Indicator = "unknown"
)

// ParseIndicator maps a raw indicator string to the closed enum. An
// unrecognized value is normalized to unknown, never an error.
func ParseIndicator(raw string) Indicator {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "none":
		return IndicatorNone
	case "minor":
		return IndicatorMinor
	case "major":
		return IndicatorMajor
	case "critical":
		return IndicatorCritical
	case "maintenance":
		return IndicatorMaintenance
	default:
		return IndicatorUnknown
	}
}

// Status is one provider's normalized status-page reading.
type Status struct {
	Indicator   Indicator  `json:"indicator"`
	Description string     `json:"description,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Client fetches status pages with a bounded timeout.
type Client struct {
	http *http.Client
}

// NewClient returns a client with the given request timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

type statusResponse struct {
	Status struct {
		Indicator   string `json:"indicator"`
		Description string `json:"description"`
	} `json:"status"`
	Page struct {
		UpdatedAt string `json:"updated_at"`
	} `json:"page"`
}

// Fetch retrieves <base>/api/v2/status.json and normalizes it.
func (c *Client) Fetch(ctx context.Context, base string) (Status, error) {
	url := strings.TrimRight(base, "/") + "/api/v2/status.json"

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return Status{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Status{}, fmt.Errorf("%w: %v", provider.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Status{}, fmt.Errorf("%w: HTTP %d", provider.ErrNetwork, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Status{}, fmt.Errorf("%w: %v", provider.ErrNetwork, err)
	}

	var parsed statusResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Status{}, fmt.Errorf("%w: %v", provider.ErrMalformedOutput, err)
	}

	status := Status{
		Indicator:   ParseIndicator(parsed.Status.Indicator),
		Description: parsed.Status.Description,
	}
	if ts, ok := parseUpdatedAt(parsed.Page.UpdatedAt); ok {
		status.UpdatedAt = &ts
	}
	return status, nil
}

// parseUpdatedAt accepts ISO-8601 with or without fractional seconds.
func parseUpdatedAt(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
