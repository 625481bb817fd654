package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/nyxkrage/quotabar/pkg/provider"
)

// HTTPClient fetches the dashboard JSON endpoint, authenticating with
// the cookie string last written by the importer.
type HTTPClient struct {
	base       string
	cookiePath string
	http       *http.Client
}

// NewHTTPClient builds a dashboard client. cookiePath is the file the
// cookie importer writes; a missing file reads as "login required".
func NewHTTPClient(base, cookiePath string) *HTTPClient {
	return &HTTPClient{
		base:       strings.TrimRight(base, "/"),
		cookiePath: cookiePath,
		http:       &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTPClient) FetchDashboard(ctx context.Context) (Snapshot, error) {
	cookie, err := os.ReadFile(c.cookiePath)
	if err != nil {
		return Snapshot{}, fmt.Errorf("no session cookie: %w", provider.ErrLoginRequired)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.base+"/api/dashboard", nil)
	if err != nil {
		return Snapshot{}, err
	}
	req.Header.Set("Cookie", strings.TrimSpace(string(cookie)))

	resp, err := c.http.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("dashboard request failed: %w", provider.ErrNetwork)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Snapshot{}, fmt.Errorf("dashboard rejected session: %w", provider.ErrLoginRequired)
	case resp.StatusCode == http.StatusNoContent:
		return Snapshot{}, provider.ErrNoData
	case resp.StatusCode != http.StatusOK:
		return Snapshot{}, fmt.Errorf("dashboard returned %d: %w", resp.StatusCode, provider.ErrNetwork)
	}

	var payload struct {
		Email        string `json:"email"`
		PlanType     string `json:"plan_type"`
		DailyTokens  int64  `json:"daily_tokens"`
		WeeklyTokens int64  `json:"weekly_tokens"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode dashboard payload: %w", provider.ErrMalformedOutput)
	}
	if payload.Email == "" {
		return Snapshot{}, provider.ErrNoData
	}

	return Snapshot{
		SignedInEmail: payload.Email,
		PlanType:      payload.PlanType,
		DailyTokens:   payload.DailyTokens,
		WeeklyTokens:  payload.WeeklyTokens,
		FetchedAt:     time.Now(),
	}, nil
}

// CommandImporter shells out to a user-configured helper that extracts
// browser cookies for the target account and writes them where the
// dashboard client expects. The target email is appended as the final
// argument.
type CommandImporter struct {
	command []string
	timeout time.Duration
}

// NewCommandImporter takes the helper invocation split into argv form.
func NewCommandImporter(command []string) *CommandImporter {
	return &CommandImporter{command: command, timeout: 30 * time.Second}
}

func (i *CommandImporter) Import(ctx context.Context, targetEmail string) error {
	if len(i.command) == 0 {
		return fmt.Errorf("no cookie import command configured")
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	args := append(append([]string(nil), i.command[1:]...), targetEmail)
	cmd := exec.CommandContext(ctx, i.command[0], args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("cookie import failed: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
