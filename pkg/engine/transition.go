package engine

// Transition is a notifiable session-quota state change.
type Transition string

const (
	TransitionNone     Transition = "none"
	TransitionDepleted Transition = "depleted"
	TransitionRefilled Transition = "refilled"
)

// DefaultDepletionEpsilon is the slack above zero remaining percent
// still considered depleted. The observed sources only ever report a
// hard 0, so the default adds no slack; it is configurable rather than
// guessed at.
const DefaultDepletionEpsilon = 0.0

// Depleted reports whether a remaining percentage is at or below the
// near-zero threshold.
func Depleted(remainingPercent, epsilon float64) bool {
	return remainingPercent <= epsilon
}

// ClassifyTransition maps the previous and current remaining percent of
// a session window to a notifiable transition. A notification fires
// exactly on crossing the threshold: never on every poll while flat at
// zero, never on ordinary fluctuation above it. previous == nil means
// this is the first observation; no transition is computed and the
// caller decides startup policy.
func ClassifyTransition(previous *float64, current, epsilon float64) Transition {
	if previous == nil {
		return TransitionNone
	}
	prevDepleted := Depleted(*previous, epsilon)
	currDepleted := Depleted(current, epsilon)
	switch {
	case !prevDepleted && currDepleted:
		return TransitionDepleted
	case prevDepleted && !currDepleted:
		return TransitionRefilled
	default:
		return TransitionNone
	}
}
