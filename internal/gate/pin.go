// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gate

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Pin is a gate backed by a GPIO input, e.g. a lock switch or the
// "screen on" line of an attached panel.
type Pin struct {
	pin gpio.PinIn
	// unlockedLevel is the level that means "unlocked".
	unlockedLevel gpio.Level
}

// NewPin wraps an already configured input. With activeLow set the gate is
// open while the pin reads Low.
func NewPin(pin gpio.PinIn, activeLow bool) *Pin {
	lvl := gpio.High
	if activeLow {
		lvl = gpio.Low
	}
	return &Pin{pin: pin, unlockedLevel: lvl}
}

// OpenPin initialises the periph host, looks the pin up by name and
// configures it as an input.
func OpenPin(name string, activeLow bool) (*Pin, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gate: periph host init: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gate: pin %q not found", name)
	}
	pull := gpio.PullDown
	if activeLow {
		pull = gpio.PullUp
	}
	if err := p.In(pull, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("gate: configure pin %q: %w", name, err)
	}
	return NewPin(p, activeLow), nil
}

// ShouldUpdate reads the pin. A missing pin keeps the gate closed.
func (p *Pin) ShouldUpdate() bool {
	if p == nil || p.pin == nil {
		return false
	}
	return p.pin.Read() == p.unlockedLevel
}
