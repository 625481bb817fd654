package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nyxkrage/quotabar/pkg/provider"
)

// ImportCooldown bounds how often a non-forced cookie import may run
// for the same target account. A forced import always runs.
const ImportCooldown = 10 * time.Minute

// Reconciler runs once per poll cycle, after the primary provider's
// fetch has landed. It detects target-account changes, invalidates
// stale cached data, triggers cookie imports, retries once, and hides
// the dashboard outright on a signed-in-account mismatch.
type Reconciler struct {
	client   Client
	importer CookieImporter
	store    SnapshotStore
	log      zerolog.Logger

	// fallbackEmail is the slower lookup used when the primary
	// provider's snapshot carried no identity. May be nil.
	fallbackEmail func(ctx context.Context) string

	// mu serializes reconciliation passes against view reads and
	// enable/disable toggles.
	mu      sync.Mutex
	enabled bool
	state   State
	view    View

	now func() time.Time
}

// NewReconciler wires the reconciler's collaborators. store may be nil
// (no persistence); fallbackEmail may be nil.
func NewReconciler(client Client, importer CookieImporter, store SnapshotStore, fallbackEmail func(ctx context.Context) string, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		client:        client,
		importer:      importer,
		store:         store,
		fallbackEmail: fallbackEmail,
		log:           log.With().Str("component", "dashboard").Logger(),
		enabled:       true,
		now:           time.Now,
	}
}

// SetEnabled toggles the feature. Disabling clears all dashboard state;
// nothing survives a disable/enable cycle.
func (r *Reconciler) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = enabled
	if !enabled {
		r.state = State{}
		r.view = View{}
	}
}

// View returns what the UI should render right now.
func (r *Reconciler) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// ColdStart seeds the view from the persisted snapshot for email, if
// any. Used at process start before the first live cycle.
func (r *Reconciler) ColdStart(ctx context.Context, email string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.store == nil {
		return
	}
	target := NormalizeEmail(email)
	if target == "" {
		return
	}
	snap, err := r.store.Load(ctx, target)
	if err != nil || snap == nil {
		return
	}
	r.state.LastTargetEmail = target
	r.state.LastGoodSnapshot = snap
	r.view = View{Snapshot: snap, Cached: true}
	r.log.Info().Str("email", target).Msg("restored cached dashboard snapshot")
}

// Reconcile runs one pass. targetEmail is the primary provider's
// resolved identity; "" falls back to the slower lookup.
func (r *Reconciler) Reconcile(ctx context.Context, targetEmail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		r.state = State{}
		r.view = View{}
		return
	}

	target := NormalizeEmail(targetEmail)
	if target == "" && r.fallbackEmail != nil {
		target = NormalizeEmail(r.fallbackEmail(ctx))
	}
	if target == "" {
		// No identity to reconcile against; leave the view alone.
		return
	}

	if r.state.LastTargetEmail != "" && target != r.state.LastTargetEmail {
		r.log.Info().
			Str("from", r.state.LastTargetEmail).
			Str("to", target).
			Msg("target account changed, invalidating dashboard state")
		if r.store != nil {
			if err := r.store.Delete(ctx, r.state.LastTargetEmail); err != nil {
				r.log.Warn().Err(err).Msg("failed to drop cached snapshot for old account")
			}
		}
		r.state.LastGoodSnapshot = nil
		r.state.RequiresLogin = true
		r.state.AccountChanged = true
		r.view = View{RequiresLogin: true}
	}
	r.state.LastTargetEmail = target

	// One import-then-retry sequence per cycle, whether triggered by
	// the account change, a persistent login requirement, or a fetch
	// failure below.
	imported := false
	if r.state.AccountChanged {
		r.state.AccountChanged = false
		r.importCookies(ctx, target, true)
		imported = true
	} else if r.shouldImport(target) {
		r.importCookies(ctx, target, false)
		imported = true
	}

	snap, err := r.client.FetchDashboard(ctx)
	if err != nil && needsLogin(err) && !imported {
		r.importCookies(ctx, target, true)
		imported = true
		snap, err = r.client.FetchDashboard(ctx)
	}
	if err != nil {
		r.settleFailure(target, err)
		return
	}

	if NormalizeEmail(snap.SignedInEmail) != target {
		// Wrong account behind the cookies. Same recovery as login
		// required: one import and one retry, then give up hard.
		if !imported {
			r.importCookies(ctx, target, true)
			snap, err = r.client.FetchDashboard(ctx)
			if err != nil {
				r.settleFailure(target, err)
				return
			}
		}
		if NormalizeEmail(snap.SignedInEmail) != target {
			r.log.Warn().
				Str("target", target).
				Str("signed_in", NormalizeEmail(snap.SignedInEmail)).
				Msg("signed-in account mismatch, hiding dashboard")
			r.state.RequiresLogin = true
			r.view = View{
				Err:           provider.ErrAccountMismatch.Error(),
				RequiresLogin: true,
			}
			return
		}
	}

	// Settled: persist keyed by identity and clear the login flag.
	r.state.LastGoodSnapshot = &snap
	r.state.RequiresLogin = false
	r.view = View{Snapshot: &snap}
	if r.store != nil {
		if err := r.store.Save(ctx, target, snap); err != nil {
			r.log.Warn().Err(err).Msg("failed to persist dashboard snapshot")
		}
	}
}

// settleFailure surfaces a terminal-for-this-cycle error, keeping the
// last good snapshot on display annotated as cached.
func (r *Reconciler) settleFailure(target string, err error) {
	r.log.Warn().Str("target", target).Err(err).Msg("dashboard refresh failed")
	if needsLogin(err) {
		r.state.RequiresLogin = true
	}
	r.view = View{
		Snapshot:      r.state.LastGoodSnapshot,
		Cached:        r.state.LastGoodSnapshot != nil,
		Err:           err.Error(),
		RequiresLogin: r.state.RequiresLogin,
	}
}

// shouldImport applies the non-forced throttle: only while login is
// required, and only when the target changed since the last import or
// the cooldown has elapsed.
func (r *Reconciler) shouldImport(target string) bool {
	if !r.state.RequiresLogin {
		return false
	}
	if target != r.state.LastImportEmail {
		return true
	}
	if r.state.LastImportAttemptAt == nil {
		return true
	}
	return r.now().Sub(*r.state.LastImportAttemptAt) > ImportCooldown
}

func (r *Reconciler) importCookies(ctx context.Context, target string, forced bool) {
	attemptedAt := r.now()
	r.state.LastImportAttemptAt = &attemptedAt
	r.state.LastImportEmail = target
	r.log.Info().Str("target", target).Bool("forced", forced).Msg("importing browser cookies")
	if err := r.importer.Import(ctx, target); err != nil {
		r.log.Warn().Err(err).Msg("cookie import failed")
	}
}

func needsLogin(err error) bool {
	return errors.Is(err, provider.ErrLoginRequired) || errors.Is(err, provider.ErrNoData)
}
