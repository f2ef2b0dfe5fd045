package schedule

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValues(t *testing.T) {
	require.Equal(t, 0.001, ExpDecay(0))
	require.InDelta(t, 0.001*math.Exp(-1), ExpDecay(10), 1e-15)

	require.InDelta(t, 0.01/math.Sqrt(Epsilon), InvSqrtDecay(0), 1e-9)
	require.InDelta(t, 0.005, InvSqrtDecay(4), 1e-9)

	require.Equal(t, 0.1, StepDecay(0))
	require.Equal(t, 0.1, StepDecay(3))
	require.Equal(t, 0.05, StepDecay(4))
	require.Equal(t, 0.025, StepDecay(9))
}

func TestPositiveAndNonIncreasing(t *testing.T) {
	for _, name := range Names() {
		f, err := Lookup(name)
		require.NoError(t, err)
		prev := math.Inf(1)
		for epoch := 0; epoch < 50; epoch++ {
			lr := f(epoch)
			require.False(t, math.IsNaN(lr) || math.IsInf(lr, 0), "%s at %d", name, epoch)
			require.Greater(t, lr, 0.)
			require.LessOrEqual(t, lr, prev, "%s at %d", name, epoch)
			prev = lr
		}
	}
}

func TestLookup(t *testing.T) {
	f, err := Lookup("lambda1")
	require.NoError(t, err)
	require.Equal(t, ExpDecay(3), f(3))

	f, err = Lookup("lambda2")
	require.NoError(t, err)
	require.Equal(t, InvSqrtDecay(3), f(3))

	_, err = Lookup("cosine")
	require.Error(t, err)
	require.Equal(t, []string{"exp_decay", "inv_sqrt_decay", "step_decay"}, Names())
}
