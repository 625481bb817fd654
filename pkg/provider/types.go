package provider

import (
	"context"
	"time"
)

// ID identifies one of the fixed set of polled backends.
type ID string

const (
	Codex  ID = "codex"
	Claude ID = "claude"
	Gemini ID = "gemini"
)

// All returns the closed provider set in display order.
func All() []ID {
	return []ID{Codex, Claude, Gemini}
}

// Valid reports whether id names a known provider.
func (id ID) Valid() bool {
	switch id {
	case Codex, Claude, Gemini:
		return true
	}
	return false
}

// RateWindow is one rolling usage window as reported by a provider.
// UsedPercent and RemainingPercent are rounded independently by the
// sources, so they need not sum to 100.
type RateWindow struct {
	UsedPercent      float64    `json:"used_percent"`
	RemainingPercent float64    `json:"remaining_percent"`
	ResetsAt         *time.Time `json:"resets_at,omitempty"`
}

// UsageSnapshot is the immutable result of one successful fetch. It is
// replaced wholesale on the next success and never partially mutated.
type UsageSnapshot struct {
	Primary      RateWindow  `json:"primary"`
	Secondary    RateWindow  `json:"secondary"`
	Tertiary     *RateWindow `json:"tertiary,omitempty"`
	FetchedAt    time.Time   `json:"fetched_at"`
	AccountEmail string      `json:"account_email,omitempty"`
	AccountOrg   string      `json:"account_org,omitempty"`
	LoginMethod  string      `json:"login_method,omitempty"`
}

// CreditsSnapshot is the auxiliary account-credit balance for the
// primary provider.
type CreditsSnapshot struct {
	Balance   float64   `json:"balance"`
	Currency  string    `json:"currency"`
	FetchedAt time.Time `json:"fetched_at"`
}

// UsageFetcher is implemented by each provider backend.
type UsageFetcher interface {
	// ID returns the stable identity of this backend.
	ID() ID

	// Fetch retrieves the current usage snapshot. It must honor ctx
	// cancellation and bound its own subprocess/network waits.
	Fetch(ctx context.Context) (UsageSnapshot, error)
}
