// Package engine drives the poll cycle: it fans out per-provider usage
// fetches, status-page checks and the auxiliary credits fetch, merges
// the results under the failure-gate policy, and runs the dashboard
// reconciler once everything has settled.
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/nyxkrage/quotabar/pkg/provider"
	"github.com/nyxkrage/quotabar/pkg/statuspage"
)

// Config holds the engine-wide tunables.
type Config struct {
	// FetchTimeout bounds one provider usage fetch.
	FetchTimeout time.Duration
	// StatusTimeout bounds one status-page check.
	StatusTimeout time.Duration
	// DepletionEpsilon is the slack above zero remaining percent still
	// treated as depleted. See DefaultDepletionEpsilon.
	DepletionEpsilon float64
	// Interval is the automatic refresh period; 0 means manual only.
	Interval time.Duration
}

// ProviderConfig is the per-provider switchboard.
type ProviderConfig struct {
	Enabled bool
	// StatusPageURL enables status checks when non-empty.
	StatusPageURL string
}

// CreditsFetcher retrieves the auxiliary account-credit balance for the
// primary provider.
type CreditsFetcher interface {
	FetchCredits(ctx context.Context) (provider.CreditsSnapshot, error)
}

// Reconciler is invoked exactly once per cycle, after the fan-out has
// settled, with the primary provider's resolved account email ("" when
// unknown; the reconciler owns its fallback lookup).
type Reconciler interface {
	Reconcile(ctx context.Context, targetEmail string)
}

// Notifier receives depletion/refill transitions. Called synchronously
// from the fetch goroutine after the snapshot is stored.
type Notifier interface {
	Notify(id provider.ID, transition Transition, snap provider.UsageSnapshot)
}

// UsageSink receives every successful usage snapshot, for persistence
// across restarts. Sink failures are logged, never surfaced.
type UsageSink interface {
	SaveUsage(ctx context.Context, id provider.ID, snap provider.UsageSnapshot) error
}

// ProviderState is the queryable per-provider view.
type ProviderState struct {
	Snapshot       *provider.UsageSnapshot `json:"snapshot,omitempty"`
	Err            string                  `json:"error,omitempty"`
	Status         *statuspage.Status      `json:"status,omitempty"`
	LastTransition Transition              `json:"last_transition,omitempty"`
}

// CreditsState is the queryable auxiliary-resource view. Loading is set
// while the source reports its data is not ready yet; it is neutral,
// not an error.
type CreditsState struct {
	Snapshot *provider.CreditsSnapshot `json:"snapshot,omitempty"`
	Err      string                    `json:"error,omitempty"`
	Loading  bool                      `json:"loading,omitempty"`
}

type providerSlot struct {
	cfg           ProviderConfig
	fetcher       provider.UsageFetcher
	gate          *FailureGate
	state         ProviderState
	lastRemaining *float64 // live fetches only; warm-loaded snapshots do not count
	statusKnown   bool     // a status classification has succeeded at least once
}

// Engine owns all mutable poll state. Fetch tasks never touch another
// provider's gate; everything shared is behind mu.
type Engine struct {
	cfg Config
	log zerolog.Logger

	mu    sync.Mutex
	slots map[provider.ID]*providerSlot

	credits     CreditsState
	creditsGate *FailureGate

	statusClient   *statuspage.Client
	creditsFetcher CreditsFetcher
	reconciler     Reconciler
	notifier       Notifier
	usageSink      UsageSink

	refreshing atomic.Bool
	intervalCh chan time.Duration
}

// New creates an engine with one slot per known provider, all disabled
// until configured.
func New(cfg Config, log zerolog.Logger) *Engine {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = 10 * time.Second
	}

	slots := make(map[provider.ID]*providerSlot, len(provider.All()))
	for _, id := range provider.All() {
		slots[id] = &providerSlot{gate: NewFailureGate()}
	}

	return &Engine{
		cfg:          cfg,
		log:          log.With().Str("component", "engine").Logger(),
		slots:        slots,
		creditsGate:  NewFailureGate(),
		statusClient: statuspage.NewClient(cfg.StatusTimeout),
		intervalCh:   make(chan time.Duration, 1),
	}
}

// RegisterFetcher installs the usage fetcher for its provider.
func (e *Engine) RegisterFetcher(f provider.UsageFetcher) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if slot, ok := e.slots[f.ID()]; ok {
		slot.fetcher = f
	}
}

// SetProviderConfig enables/disables a provider and its status checks.
func (e *Engine) SetProviderConfig(id provider.ID, cfg ProviderConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if slot, ok := e.slots[id]; ok {
		slot.cfg = cfg
	}
}

// SetCreditsFetcher installs the auxiliary credits source.
func (e *Engine) SetCreditsFetcher(f CreditsFetcher) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.creditsFetcher = f
}

// SetReconciler installs the dashboard reconciler.
func (e *Engine) SetReconciler(r Reconciler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reconciler = r
}

// SetNotifier installs the transition notifier.
func (e *Engine) SetNotifier(n Notifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifier = n
}

// SetUsageSink installs the snapshot persistence sink.
func (e *Engine) SetUsageSink(s UsageSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.usageSink = s
}

// WarmLoad seeds display snapshots from a previous run. Warm snapshots
// count as prior data for the failure gate but never feed the
// transition logic: the first live observation computes no transition.
func (e *Engine) WarmLoad(snapshots map[provider.ID]provider.UsageSnapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, snap := range snapshots {
		if slot, ok := e.slots[id]; ok {
			s := snap
			slot.state.Snapshot = &s
		}
	}
}

// State returns a copy of every provider's current view.
func (e *Engine) State() map[provider.ID]ProviderState {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[provider.ID]ProviderState, len(e.slots))
	for id, slot := range e.slots {
		out[id] = slot.state
	}
	return out
}

// Credits returns the auxiliary-resource view.
func (e *Engine) Credits() CreditsState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.credits
}

// Refresh runs one poll cycle. It is single-flight: a call while a
// cycle is in progress is a no-op.
func (e *Engine) Refresh(ctx context.Context) {
	if !e.refreshing.CompareAndSwap(false, true) {
		e.log.Debug().Msg("refresh already in flight, skipping")
		return
	}
	defer e.refreshing.Store(false)

	e.mu.Lock()
	creditsFetcher := e.creditsFetcher
	reconciler := e.reconciler
	type task struct {
		id        provider.ID
		fetcher   provider.UsageFetcher
		statusURL string
	}
	var tasks []task
	primaryEnabled := false
	for _, id := range provider.All() {
		slot := e.slots[id]
		if !slot.cfg.Enabled {
			e.clearSlotLocked(id, slot)
			continue
		}
		if id == provider.Codex {
			primaryEnabled = true
		}
		tasks = append(tasks, task{id: id, fetcher: slot.fetcher, statusURL: slot.cfg.StatusPageURL})
	}
	e.mu.Unlock()

	var wg sync.WaitGroup
	for _, tk := range tasks {
		wg.Add(1)
		go func(tk task) {
			defer wg.Done()
			e.fetchUsage(ctx, tk.id, tk.fetcher)
		}(tk)
		if tk.statusURL != "" {
			wg.Add(1)
			go func(tk task) {
				defer wg.Done()
				e.fetchStatus(ctx, tk.id, tk.statusURL)
			}(tk)
		}
	}
	if primaryEnabled && creditsFetcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.fetchCredits(ctx, creditsFetcher)
		}()
	}
	wg.Wait()

	// The reconciler needs the primary provider's resolved account
	// identity, so it runs strictly after the fan-out settles.
	if reconciler != nil {
		email := ""
		e.mu.Lock()
		if snap := e.slots[provider.Codex].state.Snapshot; snap != nil {
			email = snap.AccountEmail
		}
		e.mu.Unlock()
		reconciler.Reconcile(ctx, email)
	}
}

// clearSlotLocked wipes everything a disabled provider may have left:
// snapshot, error, streak, status, transition memory.
func (e *Engine) clearSlotLocked(id provider.ID, slot *providerSlot) {
	slot.state = ProviderState{}
	slot.lastRemaining = nil
	slot.statusKnown = false
	slot.gate.Reset()
	usedPercent.DeleteLabelValues(string(id), "primary")
	usedPercent.DeleteLabelValues(string(id), "secondary")
	failureStreak.WithLabelValues(string(id)).Set(0)
}

func (e *Engine) fetchUsage(ctx context.Context, id provider.ID, fetcher provider.UsageFetcher) {
	var (
		snap provider.UsageSnapshot
		err  error
	)
	if fetcher == nil {
		err = provider.ErrMissingExecutable
	} else {
		fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
		snap, err = fetcher.Fetch(fetchCtx)
		cancel()
	}

	e.mu.Lock()
	slot := e.slots[id]

	if err != nil {
		pollErrors.WithLabelValues(string(id)).Inc()
		hadPriorData := slot.state.Snapshot != nil
		surface := slot.gate.ShouldSurfaceError(hadPriorData)
		failureStreak.WithLabelValues(string(id)).Set(float64(slot.gate.Streak()))
		if surface {
			slot.state.Snapshot = nil
			slot.state.Err = err.Error()
			e.mu.Unlock()
			e.log.Warn().Str("provider", string(id)).Err(err).Msg("fetch failed")
			return
		}
		e.mu.Unlock()
		e.log.Debug().Str("provider", string(id)).Err(err).Msg("fetch flaked, keeping cached snapshot")
		return
	}

	slot.gate.RecordSuccess()
	failureStreak.WithLabelValues(string(id)).Set(0)

	tr := ClassifyTransition(slot.lastRemaining, snap.Primary.RemainingPercent, e.cfg.DepletionEpsilon)
	remaining := snap.Primary.RemainingPercent
	slot.lastRemaining = &remaining
	slot.state.Snapshot = &snap
	slot.state.Err = ""
	if tr != TransitionNone {
		slot.state.LastTransition = tr
	}
	notifier := e.notifier
	sink := e.usageSink
	e.mu.Unlock()

	usedPercent.WithLabelValues(string(id), "primary").Set(snap.Primary.UsedPercent)
	usedPercent.WithLabelValues(string(id), "secondary").Set(snap.Secondary.UsedPercent)

	if sink != nil {
		if err := sink.SaveUsage(ctx, id, snap); err != nil {
			e.log.Warn().Str("provider", string(id)).Err(err).Msg("failed to persist usage snapshot")
		}
	}

	if tr != TransitionNone {
		e.log.Info().Str("provider", string(id)).Str("transition", string(tr)).Msg("session quota transition")
		transitionsTotal.WithLabelValues(string(id), string(tr)).Inc()
		if notifier != nil {
			notifier.Notify(id, tr, snap)
		}
	}
}

func (e *Engine) fetchStatus(ctx context.Context, id provider.ID, base string) {
	statusCtx, cancel := context.WithTimeout(ctx, e.cfg.StatusTimeout)
	status, err := e.statusClient.Fetch(statusCtx, base)
	cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	slot := e.slots[id]

	if err != nil {
		// A transient hiccup must not regress a known status to
		// unknown. Only a provider with no classification ever
		// records the failure.
		if !slot.statusKnown && slot.state.Status == nil {
			slot.state.Status = &statuspage.Status{
				Indicator:   statuspage.IndicatorUnknown,
				Description: err.Error(),
			}
		}
		return
	}

	slot.statusKnown = true
	slot.state.Status = &status
	statusSeverity.WithLabelValues(string(id)).Set(severityValue(status.Indicator))
}

func (e *Engine) fetchCredits(ctx context.Context, fetcher CreditsFetcher) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	snap, err := fetcher.FetchCredits(fetchCtx)
	cancel()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		if errors.Is(err, provider.ErrCreditsNotReady) {
			// Non-fatal: the source is still assembling the data.
			e.credits.Loading = true
			e.credits.Err = ""
			return
		}
		hadPriorData := e.credits.Snapshot != nil
		if e.creditsGate.ShouldSurfaceError(hadPriorData) {
			e.credits.Err = err.Error()
		}
		return
	}

	e.creditsGate.RecordSuccess()
	e.credits = CreditsState{Snapshot: &snap}
}

// Start runs the periodic refresh loop until ctx is canceled. Interval
// changes via SetInterval restart the ticker; 0 stops it (manual mode).
func (e *Engine) Start(ctx context.Context) {
	interval := e.cfg.Interval

	var ticker *time.Ticker
	var tick <-chan time.Time
	reset := func(d time.Duration) {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			tick = nil
		}
		if d > 0 {
			ticker = time.NewTicker(d)
			tick = ticker.C
		}
	}
	reset(interval)
	defer reset(0)

	e.log.Info().Dur("interval", interval).Msg("poll loop started")

	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("poll loop stopped")
			return
		case d := <-e.intervalCh:
			e.log.Info().Dur("interval", d).Msg("poll interval changed")
			reset(d)
		case <-tick:
			e.Refresh(ctx)
		}
	}
}

// SetInterval replaces the refresh period; 0 switches to manual mode.
func (e *Engine) SetInterval(d time.Duration) {
	// Collapse a pending unconsumed change.
	select {
	case <-e.intervalCh:
	default:
	}
	e.intervalCh <- d
}
