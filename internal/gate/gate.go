// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package gate decides whether an incoming sample may trigger recomputation.
//
// The reference behaviour is "update only while the device is unlocked";
// every gate here reports open for unlocked and closed for locked, and falls
// back to closed when the state cannot be determined.
package gate

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Gate is queried synchronously before each recomputation.
type Gate interface {
	ShouldUpdate() bool
}

// Func adapts a plain predicate.
type Func func() bool

// ShouldUpdate calls f. A nil Func is a closed gate.
func (f Func) ShouldUpdate() bool {
	if f == nil {
		return false
	}
	return f()
}

// Always is a gate that is always open.
type Always struct{}

// ShouldUpdate always returns true.
func (Always) ShouldUpdate() bool { return true }

// Switch is a gate driven from outside, e.g. by a lock-state message.
// It starts closed until the first state is set.
type Switch struct {
	unlocked atomic.Bool
}

// NewSwitch returns a Switch with the given initial state.
func NewSwitch(unlocked bool) *Switch {
	s := &Switch{}
	s.unlocked.Store(unlocked)
	return s
}

// SetUnlocked records the current lock state.
func (s *Switch) SetUnlocked(unlocked bool) { s.unlocked.Store(unlocked) }

// ShouldUpdate reports whether the device is unlocked.
func (s *Switch) ShouldUpdate() bool {
	if s == nil {
		return false
	}
	return s.unlocked.Load()
}

// Set parses a lock-state payload and applies it. Accepted values are
// "locked"/"unlocked", "true"/"false" (true meaning locked) and "1"/"0".
func (s *Switch) Set(payload string) error {
	switch strings.ToLower(strings.TrimSpace(payload)) {
	case "unlocked", "false", "0", "off":
		s.SetUnlocked(true)
	case "locked", "true", "1", "on":
		s.SetUnlocked(false)
	default:
		return fmt.Errorf("gate: unknown lock state %q", payload)
	}
	return nil
}
