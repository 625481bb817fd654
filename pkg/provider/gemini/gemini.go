// Package gemini fetches usage by invoking the gemini CLI, which
// reports absolute request counts rather than percentages.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nyxkrage/quotabar/pkg/provider"
	"github.com/nyxkrage/quotabar/pkg/provider/cliexec"
	"github.com/nyxkrage/quotabar/pkg/shellenv"
)

// OverrideEnvVar points at an explicit gemini executable.
const OverrideEnvVar = "CODEXBAR_GEMINI_CLI"

type Fetcher struct {
	runner *cliexec.Runner
}

func NewFetcher(shell *shellenv.Cache) *Fetcher {
	return &Fetcher{
		runner: &cliexec.Runner{
			Tool:           "gemini",
			OverrideEnvVar: OverrideEnvVar,
			Shell:          shell,
		},
	}
}

func (f *Fetcher) ID() provider.ID {
	return provider.Gemini
}

// quotaReport mirrors `gemini quota --json`.
type quotaReport struct {
	User struct {
		Email string `json:"email"`
	} `json:"user"`
	Daily  *bucketReport `json:"daily"`
	Minute *bucketReport `json:"minute"`
}

type bucketReport struct {
	Used      int64  `json:"used"`
	Limit     int64  `json:"limit"`
	ResetTime string `json:"reset_time"`
}

func (f *Fetcher) Fetch(ctx context.Context) (provider.UsageSnapshot, error) {
	out, err := f.runner.Output(ctx, "quota", "--json")
	if err != nil {
		return provider.UsageSnapshot{}, err
	}

	var report quotaReport
	if err := json.Unmarshal(out, &report); err != nil {
		return provider.UsageSnapshot{}, fmt.Errorf("gemini: %w: %v", provider.ErrMalformedOutput, err)
	}
	if report.Daily == nil {
		return provider.UsageSnapshot{}, fmt.Errorf("gemini: %w: missing daily bucket", provider.ErrMalformedOutput)
	}

	snap := provider.UsageSnapshot{
		Primary:      toWindow(report.Daily),
		FetchedAt:    time.Now(),
		AccountEmail: report.User.Email,
	}
	if report.Minute != nil {
		snap.Secondary = toWindow(report.Minute)
	}
	return snap, nil
}

func toWindow(b *bucketReport) provider.RateWindow {
	window := provider.RateWindow{}
	if b.Limit > 0 {
		window.UsedPercent = float64(b.Used) / float64(b.Limit) * 100
		window.RemainingPercent = 100 - window.UsedPercent
		if window.RemainingPercent < 0 {
			window.RemainingPercent = 0
		}
	}
	if b.ResetTime != "" {
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
			if ts, err := time.Parse(layout, b.ResetTime); err == nil {
				window.ResetsAt = &ts
				break
			}
		}
	}
	return window
}
