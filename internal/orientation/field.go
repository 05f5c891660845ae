// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Field describes what a motionless device senses in the world frame:
// gravity along "up" and a geomagnetic field pointing north and down.
type Field struct {
	Gravity    float64 // m/s²
	Horizontal float64 // µT, northward component
	Down       float64 // µT, downward component
}

// EarthField is a mid-latitude reference field.
var EarthField = Field{Gravity: 9.81, Horizontal: 20, Down: 40}

// Samples returns the accelerometer and magnetometer vectors a device held at
// pose p would report. It is the inverse of Estimator.Estimate for
// |pitch| < 90°.
func (f Field) Samples(p Pose) (accel, mag r3.Vec) {
	a := -p.Yaw * math.Pi / 180.0
	b := -p.Pitch * math.Pi / 180.0
	c := p.Roll * math.Pi / 180.0

	sa, ca := math.Sincos(a)
	sb, cb := math.Sincos(b)
	sc, cc := math.Sincos(c)

	// Rows of Rz(a)·Rx(b)·Ry(c): north and up in device coordinates.
	north := r3.Vec{X: sa*cc + ca*sb*sc, Y: ca * cb, Z: sa*sc - ca*sb*cc}
	up := r3.Vec{X: -cb * sc, Y: sb, Z: cb * cc}

	accel = r3.Scale(f.Gravity, up)
	mag = r3.Sub(r3.Scale(f.Horizontal, north), r3.Scale(f.Down, up))
	return accel, mag
}
