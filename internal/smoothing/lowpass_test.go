// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package smoothing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLowPass_RejectsAlphaOutsideRange(t *testing.T) {
	t.Parallel()

	for _, alpha := range []float64{0, -0.1, 1.0001, math.NaN(), math.Inf(1)} {
		_, err := NewLowPass(alpha)
		assert.Error(t, err, "alpha=%v", alpha)
	}

	f, err := NewLowPass(1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, f.Alpha())
}

func TestLowPass_ConvergesWithoutOvershoot(t *testing.T) {
	t.Parallel()

	for _, alpha := range []float64{0.05, 0.3, 0.8, 0.99} {
		for _, target := range []float64{-150, -12.5, 0, 42, 160} {
			f, err := NewLowPass(alpha)
			require.NoError(t, err)

			prevErr := math.Abs(target - f.Last())
			converged := false
			for i := 0; i < 2000; i++ {
				out := f.Apply(target)
				e := math.Abs(target - out)
				require.LessOrEqual(t, e, prevErr, "alpha=%v target=%v step=%d", alpha, target, i)
				if target >= 0 {
					require.LessOrEqual(t, out, target+1e-12)
				} else {
					require.GreaterOrEqual(t, out, target-1e-12)
				}
				prevErr = e
				if e < 1e-6 {
					converged = true
					break
				}
			}
			assert.True(t, converged, "alpha=%v target=%v did not converge", alpha, target)
		}
	}
}

func TestLowPass_SnapsOnWraparound(t *testing.T) {
	t.Parallel()

	f, err := NewLowPass(0.2)
	require.NoError(t, err)

	// First sample is 179 away from the zero initial state, so it snaps.
	require.Equal(t, 179.0, f.Apply(179))
	// +179 -> -179 is a 358 numeric jump; expect an exact snap, no blending.
	assert.Equal(t, -179.0, f.Apply(-179))
	assert.Equal(t, -179.0, f.Last())
}

func TestLowPass_BlendsAtThreshold(t *testing.T) {
	t.Parallel()

	f, err := NewLowPass(0.5)
	require.NoError(t, err)

	// A jump of exactly WrapThreshold is still blended.
	got := f.Apply(WrapThreshold)
	assert.InDelta(t, WrapThreshold/2, got, 1e-12)
}

func TestLowPass_AlphaOnePassesThrough(t *testing.T) {
	t.Parallel()

	f, err := NewLowPass(1)
	require.NoError(t, err)
	for _, v := range []float64{10, -20, 33.3, 100} {
		assert.InDelta(t, v, f.Apply(v), 1e-9)
	}
}

func TestLowPass_ImplementsFilter(t *testing.T) {
	var _ Filter = (*LowPass)(nil)
}
