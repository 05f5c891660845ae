// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package triangulation

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultDepthScale converts incoming depth values (tenths of a millimetre)
// to millimetres.
const DefaultDepthScale = 10.0

// Side names one eye.
type Side string

const (
	Left  Side = "left"
	Right Side = "right"
)

// ParseSide accepts "left"/"right" in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case Left:
		return Left, nil
	case Right:
		return Right, nil
	default:
		return "", fmt.Errorf("triangulation: unknown side %q", s)
	}
}

// Reading is one depth callback from the media pipeline.
type Reading struct {
	Side      Side    `json:"side"`
	Depth     float64 `json:"depth"`               // tenths of a millimetre
	Timestamp int64   `json:"timestamp,omitempty"` // opaque, logging only
}

// DecodeReading parses a depth payload received on the topic for side. It
// accepts a JSON Reading or a bare number; a reading without a side takes
// side, one naming the other side is rejected.
func DecodeReading(side Side, payload []byte) (Reading, error) {
	text := strings.TrimSpace(string(payload))
	if v, err := strconv.ParseFloat(text, 64); err == nil {
		return Reading{Side: side, Depth: v}, nil
	}

	var r Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return Reading{}, fmt.Errorf("triangulation: decode reading: %w", err)
	}
	if r.Side == "" {
		r.Side = side
	}
	s, err := ParseSide(string(r.Side))
	if err != nil {
		return Reading{}, err
	}
	if s != side {
		return Reading{}, fmt.Errorf("triangulation: %s reading on the %s topic", s, side)
	}
	r.Side = s
	return r, nil
}

// Result is a solved triangle together with the depths it came from.
type Result struct {
	Angles
	DepthPair
}

// Tracker keeps the latest depth per side. It is owned by a single goroutine.
type Tracker struct {
	baseline float64
	scale    float64

	left, right         float64
	haveLeft, haveRight bool
}

// NewTracker returns a tracker for the given baseline (mm) and input scale.
func NewTracker(baselineMM, scale float64) (*Tracker, error) {
	if !positive(baselineMM) {
		return nil, fmt.Errorf("triangulation: baseline must be > 0, got %v", baselineMM)
	}
	if !positive(scale) {
		return nil, fmt.Errorf("triangulation: depth scale must be > 0, got %v", scale)
	}
	return &Tracker{baseline: baselineMM, scale: scale}, nil
}

// Update stores a reading, converted to millimetres.
func (t *Tracker) Update(r Reading) error {
	if math.IsNaN(r.Depth) || math.IsInf(r.Depth, 0) {
		return fmt.Errorf("triangulation: %s depth is not finite", r.Side)
	}
	mm := r.Depth / t.scale
	switch r.Side {
	case Left:
		t.left, t.haveLeft = mm, true
	case Right:
		t.right, t.haveRight = mm, true
	default:
		return fmt.Errorf("triangulation: unknown side %q", r.Side)
	}
	return nil
}

// Depths returns the latest values in millimetres.
func (t *Tracker) Depths() (leftMM, rightMM float64) {
	return t.left, t.right
}

// Pair builds a fresh DepthPair. ok is false until both sides have reported.
func (t *Tracker) Pair() (DepthPair, bool) {
	if !t.haveLeft || !t.haveRight {
		return DepthPair{}, false
	}
	return DepthPair{LeftMM: t.left, RightMM: t.right, BaselineMM: t.baseline}, true
}

// Solve triangulates the current pair.
func (t *Tracker) Solve() (Result, bool) {
	p, ok := t.Pair()
	if !ok {
		return Result{}, false
	}
	a, ok := p.Solve()
	if !ok {
		return Result{}, false
	}
	return Result{Angles: a, DepthPair: p}, true
}

// Reset forgets both sides.
func (t *Tracker) Reset() {
	t.left, t.right = 0, 0
	t.haveLeft, t.haveRight = false, false
}
