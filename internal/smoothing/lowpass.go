// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package smoothing holds the per-channel filters applied to estimated angles.
package smoothing

import (
	"fmt"
	"math"
)

// WrapThreshold is the jump, in degrees, above which LowPass snaps to the
// new input instead of blending. It catches the ±180° wraparound of yaw and
// roll, where a small physical rotation shows up as a ~360° numeric jump.
const WrapThreshold = 170.0

// DefaultAlpha is the blending coefficient used when none is configured.
const DefaultAlpha = 0.8

// Filter is a stateful single-channel smoother.
type Filter interface {
	Apply(input float64) float64
}

// LowPass is a first-order exponential smoother with a discontinuity override.
// A LowPass is not safe for concurrent use; give each channel its own instance
// and apply it from a single goroutine.
type LowPass struct {
	alpha float64
	last  float64
}

// NewLowPass returns a filter with the given coefficient. Alpha must be in
// (0, 1]; smaller values smooth more.
func NewLowPass(alpha float64) (*LowPass, error) {
	if math.IsNaN(alpha) || alpha <= 0 || alpha > 1 {
		return nil, fmt.Errorf("smoothing: alpha must be in (0,1], got %v", alpha)
	}
	return &LowPass{alpha: alpha}, nil
}

// Apply feeds one input and returns the new output.
func (f *LowPass) Apply(input float64) float64 {
	if math.Abs(input-f.last) > WrapThreshold {
		f.last = input
		return f.last
	}
	f.last = f.last + f.alpha*(input-f.last)
	return f.last
}

// Alpha returns the coefficient fixed at construction.
func (f *LowPass) Alpha() float64 { return f.alpha }

// Last returns the most recent output (0 before the first Apply).
func (f *LowPass) Last() float64 { return f.last }
