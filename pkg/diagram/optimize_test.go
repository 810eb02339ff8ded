package diagram

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinimizeRound_Quadratic(t *testing.T) {
	f := func(x []float64) float64 {
		a, b := x[0]-3, x[1]+1
		return a*a + 10*b*b
	}
	x := []float64{0, 0}

	steps, err := minimizeRound(context.Background(), f, x, 200)
	require.NoError(t, err)
	assert.Positive(t, steps)
	assert.LessOrEqual(t, steps, 200)
	assert.InDelta(t, 3, x[0], 1e-3)
	assert.InDelta(t, -1, x[1], 1e-3)
}

func TestMinimizeRound_EmptyProblem(t *testing.T) {
	steps, err := minimizeRound(context.Background(), func([]float64) float64 { return 0 }, nil, 10)
	require.NoError(t, err)
	assert.Zero(t, steps)
}

func TestMinimizeRound_CanceledMidRound(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	f := func(x []float64) float64 {
		calls++
		if calls == 20 {
			cancel()
		}
		var s float64
		for i, v := range x {
			d := v - float64(i)
			s += d * d * d * d
		}
		return s
	}
	x := []float64{10, -10, 10, -10}

	_, err := minimizeRound(ctx, f, x, 10000)
	assert.ErrorIs(t, err, context.Canceled)
}
