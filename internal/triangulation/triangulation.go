// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package triangulation converts left/right eye depth estimates into the
// interior angles of the triangle they form with the interocular baseline.
package triangulation

import "math"

// DefaultBaselineMM is the interocular distance used as the fixed side.
const DefaultBaselineMM = 6.3

// Angles are the interior angles of the depth triangle, in degrees.
// Alpha is opposite the left depth, Beta opposite the baseline.
type Angles struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma"`
}

// DepthPair is one left/right reading together with the baseline.
type DepthPair struct {
	LeftMM     float64 `json:"left_mm"`
	RightMM    float64 `json:"right_mm"`
	BaselineMM float64 `json:"baseline_mm"`
}

// Solve triangulates the pair.
func (p DepthPair) Solve() (Angles, bool) {
	return Solve(p.LeftMM, p.RightMM, p.BaselineMM)
}

// Solve applies the law of cosines to the sides left, right and baseline.
// It returns ok=false when |left-right| >= baseline (no valid triangle) or
// when any side is non-positive or not finite.
func Solve(left, right, baseline float64) (Angles, bool) {
	if !positive(left) || !positive(right) || !positive(baseline) {
		return Angles{}, false
	}
	if math.Abs(left-right) >= baseline {
		return Angles{}, false
	}

	cosAlpha := (left*left - baseline*baseline - right*right) / (-2 * baseline * right)
	cosBeta := (baseline*baseline - left*left - right*right) / (-2 * left * right)

	alpha := acosDeg(cosAlpha)
	beta := acosDeg(cosBeta)
	return Angles{Alpha: alpha, Beta: beta, Gamma: 180 - alpha - beta}, true
}

// acosDeg clamps c into [-1, 1] before the inverse cosine. Measurement noise
// can push the computed cosine slightly out of the domain.
func acosDeg(c float64) float64 {
	c = math.Max(-1, math.Min(1, c))
	return math.Acos(c) * 180.0 / math.Pi
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
