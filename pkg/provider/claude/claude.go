// Package claude fetches usage by invoking the claude CLI. Unlike the
// other backends it reports three windows: session, week, and a
// model-specific weekly allowance.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nyxkrage/quotabar/pkg/provider"
	"github.com/nyxkrage/quotabar/pkg/provider/cliexec"
	"github.com/nyxkrage/quotabar/pkg/shellenv"
)

// OverrideEnvVar points at an explicit claude executable.
const OverrideEnvVar = "CODEXBAR_CLAUDE_CLI"

type Fetcher struct {
	runner *cliexec.Runner
}

func NewFetcher(shell *shellenv.Cache) *Fetcher {
	return &Fetcher{
		runner: &cliexec.Runner{
			Tool:           "claude",
			OverrideEnvVar: OverrideEnvVar,
			Shell:          shell,
		},
	}
}

func (f *Fetcher) ID() provider.ID {
	return provider.Claude
}

// usageReport mirrors `claude usage --format json`. Utilization is the
// used percentage; reset timestamps are ISO-8601.
type usageReport struct {
	Email   string        `json:"email"`
	Session *windowReport `json:"session"`
	Week    *windowReport `json:"week"`
	Opus    *windowReport `json:"opus"`
}

type windowReport struct {
	Utilization float64 `json:"utilization"`
	ResetsAt    string  `json:"resets_at"`
}

func (f *Fetcher) Fetch(ctx context.Context) (provider.UsageSnapshot, error) {
	out, err := f.runner.Output(ctx, "usage", "--format", "json")
	if err != nil {
		return provider.UsageSnapshot{}, err
	}

	var report usageReport
	if err := json.Unmarshal(out, &report); err != nil {
		return provider.UsageSnapshot{}, fmt.Errorf("claude: %w: %v", provider.ErrMalformedOutput, err)
	}
	if report.Session == nil {
		return provider.UsageSnapshot{}, fmt.Errorf("claude: %w: missing session window", provider.ErrMalformedOutput)
	}

	snap := provider.UsageSnapshot{
		Primary:      toWindow(report.Session),
		FetchedAt:    time.Now(),
		AccountEmail: report.Email,
	}
	if report.Week != nil {
		snap.Secondary = toWindow(report.Week)
	}
	if report.Opus != nil {
		tertiary := toWindow(report.Opus)
		snap.Tertiary = &tertiary
	}
	return snap, nil
}

func toWindow(w *windowReport) provider.RateWindow {
	window := provider.RateWindow{
		UsedPercent:      w.Utilization,
		RemainingPercent: 100 - w.Utilization,
	}
	if window.RemainingPercent < 0 {
		window.RemainingPercent = 0
	}
	if w.ResetsAt != "" {
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
			if ts, err := time.Parse(layout, w.ResetsAt); err == nil {
				window.ResetsAt = &ts
				break
			}
		}
	}
	return window
}
