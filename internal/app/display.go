// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"image"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/gaze_computer/internal/config"
	"github.com/relabs-tech/gaze_computer/internal/monitoring"
	"github.com/relabs-tech/gaze_computer/internal/orientation"
	"github.com/relabs-tech/gaze_computer/internal/triangulation"
)

const (
	displayWidth  = 128
	displayHeight = 64
)

// displayData holds the latest values shown on the OLED.
type displayData struct {
	pose         orientation.Pose
	havePose     bool
	triangle     triangulation.Result
	haveTriangle bool
}

// displayState is written by MQTT callbacks and read by the update loop.
type displayState struct {
	mu   sync.RWMutex
	data displayData
}

func (s *displayState) snapshot() displayData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

func (s *displayState) poseHandler() mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		var p orientation.Pose
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			monitoring.Logf("[display] orientation unmarshal error: %v", err)
			return
		}
		s.mu.Lock()
		s.data.pose = p
		s.data.havePose = true
		s.mu.Unlock()
	}
}

func (s *displayState) triangleHandler() mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		var r triangulation.Result
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			monitoring.Logf("[display] triangle unmarshal error: %v", err)
			return
		}
		s.mu.Lock()
		s.data.triangle = r
		s.data.haveTriangle = true
		s.mu.Unlock()
	}
}

// RunDisplay shows orientation and triangle angles on an SSD1306 OLED.
func RunDisplay() error {
	cfg := config.Get()
	if cfg == nil {
		return errNoConfig
	}

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(cfg.Display.I2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(addrBus{Bus: bus, addr: cfg.Display.I2CAddr}, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	defer dev.Halt()
	monitoring.Logf("[display] initialized at 0x%02X", cfg.Display.I2CAddr)

	if err := dev.Draw(dev.Bounds(), renderSplash(), image.Point{}); err != nil {
		monitoring.Logf("[display] error showing splash: %v", err)
	}

	state := &displayState{}
	client, err := connectMQTT(cfg.MQTT, "display",
		subscription{cfg.Topics.Orientation, state.poseHandler()},
		subscription{cfg.Topics.Triangle, state.triangleHandler()},
	)
	if err != nil {
		return err
	}
	defer disconnect(client)

	ticker := time.NewTicker(cfg.Display.UpdateInterval)
	defer ticker.Stop()

	ctx, stop := signalContext()
	defer stop()
	monitoring.Logf("[display] starting update loop")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := dev.Draw(dev.Bounds(), renderPage(state.snapshot()), image.Point{}); err != nil {
				monitoring.Logf("[display] error updating display: %v", err)
			}
		}
	}
}

// addrBus sends every transaction to addr, for panels strapped to 0x3D.
type addrBus struct {
	i2c.Bus
	addr uint16
}

func (b addrBus) Tx(_ uint16, w, r []byte) error {
	return b.Bus.Tx(b.addr, w, r)
}

func newCanvas() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func drawLine(d *font.Drawer, x, y int, text string) {
	d.Dot = fixed.P(x, y)
	d.DrawString(text)
}

// renderPage draws yaw/pitch/roll on the left half and alpha/beta/gamma
// on the right half.
func renderPage(data displayData) *image1bit.VerticalLSB {
	img, d := newCanvas()

	if data.havePose {
		drawLine(d, 0, 13, fmt.Sprintf("Y%6.1f", data.pose.Yaw))
		drawLine(d, 0, 26, fmt.Sprintf("P%6.1f", data.pose.Pitch))
		drawLine(d, 0, 39, fmt.Sprintf("R%6.1f", data.pose.Roll))
	} else {
		drawLine(d, 0, 26, "Pose")
		drawLine(d, 0, 39, "wait..")
	}

	if data.haveTriangle {
		drawLine(d, 64, 13, fmt.Sprintf("a%6.1f", data.triangle.Alpha))
		drawLine(d, 64, 26, fmt.Sprintf("b%6.1f", data.triangle.Beta))
		drawLine(d, 64, 39, fmt.Sprintf("g%6.1f", data.triangle.Gamma))
		drawLine(d, 0, 56, fmt.Sprintf("L%5.1f R%5.1f mm", data.triangle.LeftMM, data.triangle.RightMM))
	} else {
		drawLine(d, 64, 26, "Depth")
		drawLine(d, 64, 39, "wait..")
	}
	return img
}

func renderSplash() *image1bit.VerticalLSB {
	img, d := newCanvas()
	drawLine(d, 10, 26, "Gaze Computer")
	drawLine(d, 5, 43, "Waiting for")
	drawLine(d, 25, 56, "sensors")
	return img
}
