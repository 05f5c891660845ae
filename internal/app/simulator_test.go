// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/gaze_computer/internal/triangulation"
)

func TestDepthSimulator_AlwaysFormsTriangle(t *testing.T) {
	sim := newDepthSimulator(45, 6.3, 10)
	for ms := 0; ms < 20000; ms += 37 {
		l, r := sim.depths(time.Duration(ms) * time.Millisecond)
		_, ok := triangulation.Solve(l, r, 6.3)
		require.True(t, ok, "t=%dms left=%v right=%v", ms, l, r)
	}
}

func TestDepthSimulator_CentredSubject(t *testing.T) {
	sim := newDepthSimulator(45, 6.3, 10)
	l, r := sim.depths(0)
	assert.InDelta(t, l, r, 1e-12)

	now := time.Unix(1700000000, 0)
	left, right := sim.readings(0, now)
	assert.Equal(t, triangulation.Left, left.Side)
	assert.Equal(t, triangulation.Right, right.Side)
	assert.InDelta(t, l*10, left.Depth, 1e-9)
	assert.Equal(t, now.UnixMilli(), right.Timestamp)

	// Round trip through the tracker recovers millimetres.
	tr, err := triangulation.NewTracker(6.3, 10)
	require.NoError(t, err)
	require.NoError(t, tr.Update(left))
	require.NoError(t, tr.Update(right))
	res, ok := tr.Solve()
	require.True(t, ok)
	assert.InDelta(t, l, res.LeftMM, 1e-9)
	assert.InDelta(t, res.Alpha, res.Gamma, 1e-9)
}
