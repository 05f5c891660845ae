// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"math"
	"time"

	"github.com/relabs-tech/gaze_computer/internal/config"
	"github.com/relabs-tech/gaze_computer/internal/monitoring"
	"github.com/relabs-tech/gaze_computer/internal/motion"
	"github.com/relabs-tech/gaze_computer/internal/orientation"
	"github.com/relabs-tech/gaze_computer/internal/triangulation"
)

// RunSimulator publishes synthetic motion samples and depth readings so the
// engine can run without hardware or a camera pipeline.
func RunSimulator() error {
	cfg := config.Get()
	if cfg == nil {
		return errNoConfig
	}

	client, err := connectMQTT(cfg.MQTT, "simulator")
	if err != nil {
		return err
	}
	defer disconnect(client)

	motionSrc := orientation.NewMockSource()
	depthSrc := newDepthSimulator(cfg.Simulator.SubjectMM, cfg.Depth.BaselineMM, cfg.Depth.Scale)
	start := time.Now()

	motionTicker := time.NewTicker(cfg.Simulator.MotionInterval)
	defer motionTicker.Stop()
	depthTicker := time.NewTicker(cfg.Simulator.DepthInterval)
	defer depthTicker.Stop()

	ctx, stop := signalContext()
	defer stop()
	monitoring.Logf("[simulator] publishing motion every %v, depth every %v", cfg.Simulator.MotionInterval, cfg.Simulator.DepthInterval)

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("[simulator] shutting down")
			return nil

		case now := <-motionTicker.C:
			r, err := motionSrc.NextReading()
			if err != nil {
				return err
			}
			r.Time = now.UTC().Format(time.RFC3339Nano)
			topic := cfg.Topics.Accel
			if r.Channel == motion.Mag {
				topic = cfg.Topics.Mag
			}
			if err := publishJSONSync(client, topic, cfg.MQTT.QoS, false, r); err != nil {
				monitoring.Logf("[simulator] publish error: %v", err)
			}

		case now := <-depthTicker.C:
			left, right := depthSrc.readings(now.Sub(start), now)
			if err := publishJSONSync(client, cfg.Topics.DepthLeft, cfg.MQTT.QoS, false, left); err != nil {
				monitoring.Logf("[simulator] publish error: %v", err)
			}
			if err := publishJSONSync(client, cfg.Topics.DepthRight, cfg.MQTT.QoS, false, right); err != nil {
				monitoring.Logf("[simulator] publish error: %v", err)
			}
		}
	}
}

// depthSimulator places a subject in front of two eyes baseline apart and
// sweeps it sideways.
type depthSimulator struct {
	distance float64 // mm straight ahead
	baseline float64 // mm between the eyes
	scale    float64 // output units per mm
}

func newDepthSimulator(distanceMM, baselineMM, scale float64) *depthSimulator {
	return &depthSimulator{distance: distanceMM, baseline: baselineMM, scale: scale}
}

// depths returns the eye-to-subject distances in mm after elapsed.
func (d *depthSimulator) depths(elapsed time.Duration) (leftMM, rightMM float64) {
	t := elapsed.Seconds()
	x := 0.5 * d.distance * math.Sin(0.4*t)
	half := d.baseline / 2
	return math.Hypot(x+half, d.distance), math.Hypot(x-half, d.distance)
}

func (d *depthSimulator) readings(elapsed time.Duration, now time.Time) (left, right triangulation.Reading) {
	l, r := d.depths(elapsed)
	ts := now.UnixMilli()
	return triangulation.Reading{Side: triangulation.Left, Depth: l * d.scale, Timestamp: ts},
		triangulation.Reading{Side: triangulation.Right, Depth: r * d.scale, Timestamp: ts}
}
