// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestAlwaysAndFunc(t *testing.T) {
	assert.True(t, Always{}.ShouldUpdate())
	assert.True(t, Func(func() bool { return true }).ShouldUpdate())
	assert.False(t, Func(func() bool { return false }).ShouldUpdate())

	var nilFunc Func
	assert.False(t, nilFunc.ShouldUpdate())
}

func TestSwitch_StartsClosed(t *testing.T) {
	var s Switch
	assert.False(t, s.ShouldUpdate())

	var nilSwitch *Switch
	assert.False(t, nilSwitch.ShouldUpdate())
}

func TestSwitch_Set(t *testing.T) {
	cases := []struct {
		payload string
		want    bool
	}{
		{"unlocked", true},
		{" UNLOCKED\n", true},
		{"false", true},
		{"0", true},
		{"locked", false},
		{"true", false},
		{"1", false},
	}
	for _, tc := range cases {
		s := NewSwitch(!tc.want)
		if err := s.Set(tc.payload); err != nil {
			t.Fatalf("Set(%q) error: %v", tc.payload, err)
		}
		assert.Equal(t, tc.want, s.ShouldUpdate(), "payload %q", tc.payload)
	}
}

func TestSwitch_SetRejectsUnknownAndKeepsState(t *testing.T) {
	s := NewSwitch(true)
	assert.Error(t, s.Set("maybe"))
	assert.True(t, s.ShouldUpdate())
}

func TestPin_Polarity(t *testing.T) {
	p := &gpiotest.Pin{N: "GPIO17", L: gpio.High}

	high := NewPin(p, false)
	low := NewPin(p, true)
	assert.True(t, high.ShouldUpdate())
	assert.False(t, low.ShouldUpdate())

	p.L = gpio.Low
	assert.False(t, high.ShouldUpdate())
	assert.True(t, low.ShouldUpdate())
}

func TestPin_MissingPinIsClosed(t *testing.T) {
	assert.False(t, NewPin(nil, false).ShouldUpdate())

	var nilPin *Pin
	assert.False(t, nilPin.ShouldUpdate())
}
