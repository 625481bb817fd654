// Package codex fetches usage for the primary provider by invoking the
// codex CLI and parsing its JSON usage report.
package codex

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nyxkrage/quotabar/pkg/provider"
	"github.com/nyxkrage/quotabar/pkg/provider/cliexec"
	"github.com/nyxkrage/quotabar/pkg/shellenv"
)

// OverrideEnvVar points at an explicit codex executable.
const OverrideEnvVar = "CODEXBAR_CODEX_CLI"

type Fetcher struct {
	runner *cliexec.Runner
}

func NewFetcher(shell *shellenv.Cache) *Fetcher {
	return &Fetcher{
		runner: &cliexec.Runner{
			Tool:           "codex",
			OverrideEnvVar: OverrideEnvVar,
			Shell:          shell,
		},
	}
}

func (f *Fetcher) ID() provider.ID {
	return provider.Codex
}

// usageReport mirrors `codex usage --json`.
type usageReport struct {
	Account struct {
		Email        string `json:"email"`
		Organization string `json:"organization"`
		LoginMethod  string `json:"login_method"`
	} `json:"account"`
	RateLimits struct {
		Primary   *windowReport `json:"primary"`
		Secondary *windowReport `json:"secondary"`
	} `json:"rate_limits"`
}

type windowReport struct {
	UsedPercent    float64 `json:"used_percent"`
	ResetsInSecond *int64  `json:"resets_in_seconds"`
}

func (f *Fetcher) Fetch(ctx context.Context) (provider.UsageSnapshot, error) {
	out, err := f.runner.Output(ctx, "usage", "--json")
	if err != nil {
		return provider.UsageSnapshot{}, err
	}

	var report usageReport
	if err := json.Unmarshal(out, &report); err != nil {
		return provider.UsageSnapshot{}, fmt.Errorf("codex: %w: %v", provider.ErrMalformedOutput, err)
	}
	if report.RateLimits.Primary == nil {
		return provider.UsageSnapshot{}, fmt.Errorf("codex: %w: missing primary rate limit", provider.ErrMalformedOutput)
	}

	now := time.Now()
	snap := provider.UsageSnapshot{
		Primary:      toWindow(report.RateLimits.Primary, now),
		FetchedAt:    now,
		AccountEmail: report.Account.Email,
		AccountOrg:   report.Account.Organization,
		LoginMethod:  report.Account.LoginMethod,
	}
	if report.RateLimits.Secondary != nil {
		snap.Secondary = toWindow(report.RateLimits.Secondary, now)
	}
	return snap, nil
}

func toWindow(w *windowReport, now time.Time) provider.RateWindow {
	window := provider.RateWindow{
		UsedPercent:      w.UsedPercent,
		RemainingPercent: 100 - w.UsedPercent,
	}
	if window.RemainingPercent < 0 {
		window.RemainingPercent = 0
	}
	if w.ResetsInSecond != nil {
		resetsAt := now.Add(time.Duration(*w.ResetsInSecond) * time.Second)
		window.ResetsAt = &resetsAt
	}
	return window
}
