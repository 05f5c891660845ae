// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Channel names one of the two motion sensors.
type Channel string

const (
	Accel Channel = "accel"
	Mag   Channel = "mag"
)

// Reading is a single motion sample as it travels over MQTT.
type Reading struct {
	Channel Channel `json:"channel"` // "accel" or "mag"

	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`

	Time string `json:"time,omitempty"` // RFC3339, informational only
}

// Vec returns the sample as a vector.
func (r Reading) Vec() r3.Vec {
	return r3.Vec{X: r.X, Y: r.Y, Z: r.Z}
}

// Validate checks that the channel is known.
func (r Reading) Validate() error {
	switch r.Channel {
	case Accel, Mag:
		return nil
	default:
		return fmt.Errorf("motion: unknown channel %q", r.Channel)
	}
}

// DecodeReading parses a JSON reading received on the topic for ch. A
// reading without a channel takes ch; one naming another channel is rejected.
func DecodeReading(ch Channel, payload []byte) (Reading, error) {
	var r Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return Reading{}, fmt.Errorf("motion: decode reading: %w", err)
	}
	if r.Channel == "" {
		r.Channel = ch
	}
	if r.Channel != ch {
		return Reading{}, fmt.Errorf("motion: %s reading on the %s topic", r.Channel, ch)
	}
	return r, r.Validate()
}

// ReadingSource is anything that produces motion readings one at a time.
type ReadingSource interface {
	NextReading() (Reading, error)
}
