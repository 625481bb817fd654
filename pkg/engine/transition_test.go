package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func prev(v float64) *float64 { return &v }

func TestClassifyTransition(t *testing.T) {
	tests := []struct {
		name     string
		previous *float64
		current  float64
		want     Transition
	}{
		{"crossing into depletion", prev(12), 0, TransitionDepleted},
		{"refill from zero", prev(0), 5, TransitionRefilled},
		{"ordinary fluctuation", prev(3), 2, TransitionNone},
		{"flat at zero", prev(0), 0, TransitionNone},
		{"flat at full", prev(100), 100, TransitionNone},
		{"first observation", nil, 0, TransitionNone},
		{"first observation healthy", nil, 80, TransitionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyTransition(tt.previous, tt.current, DefaultDepletionEpsilon)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyTransition_Epsilon(t *testing.T) {
	// With slack configured, dropping to 1.5 crosses the threshold.
	assert.Equal(t, TransitionDepleted, ClassifyTransition(prev(10), 1.5, 2.0))
	// And climbing back above it refills.
	assert.Equal(t, TransitionRefilled, ClassifyTransition(prev(1.5), 3.0, 2.0))
	// Movement entirely below the threshold is not a new crossing.
	assert.Equal(t, TransitionNone, ClassifyTransition(prev(1.5), 0.5, 2.0))
}

func TestDepleted(t *testing.T) {
	assert.True(t, Depleted(0, DefaultDepletionEpsilon))
	assert.False(t, Depleted(0.1, DefaultDepletionEpsilon))
	assert.True(t, Depleted(1.9, 2.0))
}
