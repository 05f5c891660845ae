// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package orientation turns accelerometer + magnetometer samples into
// heading/pitch/roll angles.
package orientation

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Pose is the canonical representation of orientation for the app.
// All angles are in degrees.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"` // heading
}

// Source is anything that can provide poses over time.
type Source interface {
	Next() (Pose, error)
}

const (
	// DefaultMinGravity rejects accelerometer vectors shorter than 0.1 g
	// (m/s²), i.e. free fall, where "down" is undefined.
	DefaultMinGravity = 0.981

	// DefaultMinParallelSine rejects sample pairs whose angle is under ~0.6°.
	DefaultMinParallelSine = 0.01
)

// Estimator builds a rotation matrix from gravity and the geomagnetic field
// and decomposes it into Euler angles.
type Estimator struct {
	// MinGravity is the minimum accelerometer magnitude, in sample units.
	MinGravity float64
	// MinParallelSine is the minimum sine of the angle between the two
	// vectors. Smaller values mean the vectors are (nearly) parallel and
	// east/north cannot be recovered.
	MinParallelSine float64
}

// NewEstimator returns an Estimator with default thresholds.
func NewEstimator() Estimator {
	return Estimator{
		MinGravity:      DefaultMinGravity,
		MinParallelSine: DefaultMinParallelSine,
	}
}

// RotationMatrix returns the matrix whose rows are east, north and up
// expressed in device coordinates. ok is false for degenerate input.
func (e Estimator) RotationMatrix(accel, mag r3.Vec) (m *r3.Mat, ok bool) {
	if !finite(accel) || !finite(mag) {
		return nil, false
	}

	normA := r3.Norm(accel)
	normE := r3.Norm(mag)
	if normA < e.MinGravity || normA == 0 || normE == 0 {
		return nil, false
	}

	// East is perpendicular to both the field and gravity.
	h := r3.Cross(mag, accel)
	normH := r3.Norm(h)
	if normH <= e.MinParallelSine*normA*normE {
		return nil, false
	}
	h = r3.Scale(1/normH, h)
	a := r3.Scale(1/normA, accel)
	n := r3.Cross(a, h)

	return r3.NewMat([]float64{
		h.X, h.Y, h.Z,
		n.X, n.Y, n.Z,
		a.X, a.Y, a.Z,
	}), true
}

// Estimate returns yaw/pitch/roll in degrees, or ok=false when the
// sample pair does not define an orientation. It never returns NaN or Inf.
func (e Estimator) Estimate(accel, mag r3.Vec) (Pose, bool) {
	m, ok := e.RotationMatrix(accel, mag)
	if !ok {
		return Pose{}, false
	}

	yaw := math.Atan2(m.At(0, 1), m.At(1, 1))
	pitch := math.Atan2(-m.At(2, 1), math.Hypot(m.At(2, 0), m.At(2, 2)))
	roll := math.Atan2(-m.At(2, 0), m.At(2, 2))

	p := Pose{
		Roll:  roll * 180.0 / math.Pi,
		Pitch: pitch * 180.0 / math.Pi,
		Yaw:   yaw * 180.0 / math.Pi,
	}
	if !finite(r3.Vec{X: p.Roll, Y: p.Pitch, Z: p.Yaw}) {
		return Pose{}, false
	}
	return p, true
}

func finite(v r3.Vec) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
