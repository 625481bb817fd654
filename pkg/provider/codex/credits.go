package codex

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

// notReadyMessage is the backend's answer while it is still assembling
// the balance. It is the one failure that must not alarm the user.
const notReadyMessage = "usage data is not ready yet"

// CreditsClient fetches the account credit balance from the provider
// backend. It is the auxiliary resource the engine polls alongside the
// usage fan-out.
type CreditsClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewCreditsClient(baseURL, token string) *CreditsClient {
	return &CreditsClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type creditsResponse struct {
	Balance  float64 `json:"balance"`
	Currency string  `json:"currency"`
	Error    string  `json:"error,omitempty"`
}

func (c *CreditsClient) FetchCredits(ctx context.Context) (provider.CreditsSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/credits", nil)
	if err != nil {
		return provider.CreditsSnapshot{}, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return provider.CreditsSnapshot{}, fmt.Errorf("%w: %v", provider.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return provider.CreditsSnapshot{}, fmt.Errorf("%w: %v", provider.ErrNetwork, err)
	}

	var parsed creditsResponse
	// Decode errors take second place to status handling: an error
	// body may ride on any status code.
	_ = json.Unmarshal(body, &parsed)

	if strings.Contains(strings.ToLower(parsed.Error), notReadyMessage) {
		return provider.CreditsSnapshot{}, provider.ErrCreditsNotReady
	}
	if resp.StatusCode == http.StatusAccepted {
		return provider.CreditsSnapshot{}, provider.ErrCreditsNotReady
	}
	if resp.StatusCode != http.StatusOK {
		return provider.CreditsSnapshot{}, fmt.Errorf("%w: HTTP %d", provider.ErrNetwork, resp.StatusCode)
	}
	if parsed.Currency == "" {
		return provider.CreditsSnapshot{}, fmt.Errorf("%w: missing currency", provider.ErrMalformedOutput)
	}

	return provider.CreditsSnapshot{
		Balance:   parsed.Balance,
		Currency:  parsed.Currency,
		FetchedAt: time.Now(),
	}, nil
}
