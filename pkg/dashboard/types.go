// Package dashboard guards the browser-cookie-backed web dashboard
// source against displaying data belonging to the wrong account, and
// owns the cookie-import retry flow.
package dashboard

import (
	"context"
	"strings"
	"time"
)

// Snapshot is one successful dashboard read. SignedInEmail is the
// identity the dashboard itself reports; it may disagree with the
// account the CLI resolved, which is exactly what the reconciler
// detects.
type Snapshot struct {
	SignedInEmail string    `json:"signed_in_email"`
	PlanType      string    `json:"plan_type,omitempty"`
	DailyTokens   int64     `json:"daily_tokens"`
	WeeklyTokens  int64     `json:"weekly_tokens"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// Client fetches the dashboard using whatever cookies were last
// imported into its jar.
type Client interface {
	FetchDashboard(ctx context.Context) (Snapshot, error)
}

// CookieImporter performs the expensive cross-browser cookie read for
// the target account. Imports are throttled by the reconciler, never
// by the importer.
type CookieImporter interface {
	Import(ctx context.Context, targetEmail string) error
}

// SnapshotStore persists last-good snapshots keyed by normalized
// account email, for cold-start display across restarts.
type SnapshotStore interface {
	Load(ctx context.Context, email string) (*Snapshot, error)
	Save(ctx context.Context, email string, snap Snapshot) error
	Delete(ctx context.Context, email string) error
}

// State is the reconciler's persistent working memory. AccountChanged
// is a one-shot flag consumed by the next reconciliation pass.
type State struct {
	LastTargetEmail     string
	RequiresLogin       bool
	LastImportAttemptAt *time.Time
	LastImportEmail     string
	AccountChanged      bool
	LastGoodSnapshot    *Snapshot
}

// View is what the UI layer renders. A nil Snapshot hides the
// dashboard entirely.
type View struct {
	Snapshot      *Snapshot `json:"snapshot,omitempty"`
	Cached        bool      `json:"cached,omitempty"`
	Err           string    `json:"error,omitempty"`
	RequiresLogin bool      `json:"requires_login,omitempty"`
}

// NormalizeEmail trims and case-folds an account identity for
// comparison and cache keying.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
