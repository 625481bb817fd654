package engine

// FailureGate is the per-provider consecutive-failure counter deciding
// whether a fetch failure is surfaced to the user. A single flake right
// after good data is swallowed; a second consecutive failure, or any
// failure with no prior data, is surfaced. No I/O, not goroutine-safe;
// the orchestrator is the sole owner.
type FailureGate struct {
	streak int
}

// NewFailureGate returns a gate with a zero streak.
func NewFailureGate() *FailureGate {
	return &FailureGate{}
}

// RecordSuccess resets the failure streak.
func (g *FailureGate) RecordSuccess() {
	g.streak = 0
}

// ShouldSurfaceError records one failure and reports whether it should
// be shown. With prior good data the first consecutive failure is
// suppressed; everything else surfaces.
func (g *FailureGate) ShouldSurfaceError(hadPriorData bool) bool {
	g.streak++
	if hadPriorData && g.streak == 1 {
		return false
	}
	return true
}

// Streak returns the current consecutive-failure count.
func (g *FailureGate) Streak() int {
	return g.streak
}

// Reset clears the streak, used when a provider is disabled.
func (g *FailureGate) Reset() {
	g.streak = 0
}
