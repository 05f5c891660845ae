// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"time"

	"github.com/relabs-tech/gaze_computer/internal/motion"
)

// MockSource generates a smoothly changing pose and the motion readings a
// device in that pose would produce. Readings alternate between the
// accelerometer and magnetometer channels.
type MockSource struct {
	start time.Time
	now   func() time.Time
	field Field
	next  motion.Channel
}

// NewMockSource creates a mock source anchored at the current time.
func NewMockSource() *MockSource {
	return &MockSource{start: time.Now(), now: time.Now, field: EarthField, next: motion.Accel}
}

// Next returns the true pose at the current time.
func (m *MockSource) Next() (Pose, error) {
	return m.poseAt(m.now().Sub(m.start).Seconds()), nil
}

// NextReading returns the next motion sample for the current pose.
func (m *MockSource) NextReading() (motion.Reading, error) {
	now := m.now()
	p := m.poseAt(now.Sub(m.start).Seconds())
	accel, mag := m.field.Samples(p)

	r := motion.Reading{Channel: m.next, Time: now.UTC().Format(time.RFC3339)}
	v := accel
	if m.next == motion.Mag {
		v = mag
		m.next = motion.Accel
	} else {
		m.next = motion.Mag
	}
	r.X, r.Y, r.Z = v.X, v.Y, v.Z
	return r, nil
}

func (m *MockSource) poseAt(elapsed float64) Pose {
	return Pose{
		Roll:  20 * math.Sin(elapsed),
		Pitch: 15 * math.Cos(elapsed*0.7),
		Yaw:   math.Mod(elapsed*30, 360) - 180,
	}
}
