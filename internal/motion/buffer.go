// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package motion buffers the latest accelerometer and magnetometer samples.
package motion

import "gonum.org/v1/gonum/spatial/r3"

// Buffer keeps the most recent sample per channel. The channels update
// independently; no timestamp alignment or averaging is done.
//
// Buffer is owned by a single goroutine and has no locking of its own.
type Buffer struct {
	accel, mag         r3.Vec
	haveAccel, haveMag bool
}

// UpdateAccel overwrites the accelerometer sample.
func (b *Buffer) UpdateAccel(v r3.Vec) {
	b.accel = v
	b.haveAccel = true
}

// UpdateMag overwrites the magnetometer sample.
func (b *Buffer) UpdateMag(v r3.Vec) {
	b.mag = v
	b.haveMag = true
}

// Update routes a reading to its channel.
func (b *Buffer) Update(r Reading) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.Channel == Accel {
		b.UpdateAccel(r.Vec())
	} else {
		b.UpdateMag(r.Vec())
	}
	return nil
}

// HasBothChannels reports whether each channel has received at least one sample.
func (b *Buffer) HasBothChannels() bool {
	return b.haveAccel && b.haveMag
}

// Latest returns the current pair. ok is false until both channels are populated.
func (b *Buffer) Latest() (accel, mag r3.Vec, ok bool) {
	return b.accel, b.mag, b.HasBothChannels()
}

// Reset drops both samples.
func (b *Buffer) Reset() {
	*b = Buffer{}
}
