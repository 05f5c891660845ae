// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/gaze_computer/internal/config"
	"github.com/relabs-tech/gaze_computer/internal/engine"
	"github.com/relabs-tech/gaze_computer/internal/gate"
	"github.com/relabs-tech/gaze_computer/internal/monitoring"
	"github.com/relabs-tech/gaze_computer/internal/motion"
	"github.com/relabs-tech/gaze_computer/internal/orientation"
	"github.com/relabs-tech/gaze_computer/internal/recorder"
	"github.com/relabs-tech/gaze_computer/internal/triangulation"
)

var errNoConfig = errors.New("config not initialized; call config.InitGlobal first")

// RunEngine subscribes to the motion, depth and gate topics, runs the
// fusion engine and publishes smoothed orientation and triangle angles
// until interrupted.
func RunEngine() error {
	cfg := config.Get()
	if cfg == nil {
		return errNoConfig
	}
	ctx, stop := signalContext()
	defer stop()
	return runEngine(ctx, cfg)
}

func runEngine(ctx context.Context, cfg *config.Config) error {
	g, sw, err := buildGate(cfg.Gate)
	if err != nil {
		return err
	}

	pub := &mqttPublisher{
		orientationTopic: cfg.Topics.Orientation,
		triangleTopic:    cfg.Topics.Triangle,
		qos:              cfg.MQTT.QoS,
	}
	pubs := []engine.Publisher{pub}
	if cfg.Engine.LogValues {
		pubs = append(pubs, engine.LogPublisher{})
	}

	var rec *recorder.Recorder
	if cfg.Recorder.Enable {
		rec, err = recorder.Open(cfg.Recorder.Path)
		if err != nil {
			return err
		}
		defer closeRecorder(rec)
		monitoring.Logf("[recorder] session %s writing to %s", rec.Session(), cfg.Recorder.Path)
		pubs = append(pubs, rec)
	}

	eng, err := engine.New(engineConfig(cfg), g, pubs...)
	if err != nil {
		return err
	}
	defer eng.Close()

	client, err := connectMQTT(cfg.MQTT, "engine", engineSubscriptions(cfg, eng, sw)...)
	if err != nil {
		return err
	}
	defer disconnect(client)
	pub.client = client

	if err := eng.Start(ctx); err != nil {
		return err
	}
	monitoring.Logf("[engine] running (gate=%s alpha=%.2f baseline=%.2fmm)",
		cfg.Gate.Mode, cfg.Filter.Alpha, cfg.Depth.BaselineMM)

	ticker := time.NewTicker(cfg.Engine.StatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("[engine] shutting down")
			logStats(eng.Snapshot().Stats)
			return nil
		case <-ticker.C:
			logStats(eng.Snapshot().Stats)
		}
	}
}

func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		Alpha: cfg.Filter.Alpha,
		Estimator: orientation.Estimator{
			MinGravity:      cfg.Orientation.MinGravity,
			MinParallelSine: cfg.Orientation.MinParallelSine,
		},
		BaselineMM: cfg.Depth.BaselineMM,
		DepthScale: cfg.Depth.Scale,
		QueueSize:  cfg.Engine.QueueSize,
	}
}

// buildGate returns the configured gate. The switch is non-nil only in
// "mqtt" mode, where the lock topic drives it.
func buildGate(cfg config.GateConfig) (gate.Gate, *gate.Switch, error) {
	switch cfg.Mode {
	case config.GateAlways, "":
		return gate.Always{}, nil, nil
	case config.GateMQTT:
		// Closed until the first lock message arrives.
		sw := gate.NewSwitch(false)
		return sw, sw, nil
	case config.GateGPIO:
		pin, err := gate.OpenPin(cfg.GPIOPin, cfg.ActiveLow)
		if err != nil {
			return nil, nil, err
		}
		return pin, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown gate mode %q", cfg.Mode)
	}
}

func engineSubscriptions(cfg *config.Config, eng *engine.Engine, sw *gate.Switch) []subscription {
	subs := []subscription{
		{cfg.Topics.Accel, motionHandler(eng, motion.Accel)},
		{cfg.Topics.Mag, motionHandler(eng, motion.Mag)},
		{cfg.Topics.DepthLeft, depthHandler(eng, triangulation.Left)},
		{cfg.Topics.DepthRight, depthHandler(eng, triangulation.Right)},
	}
	if sw != nil {
		subs = append(subs, subscription{cfg.Topics.Gate, gateHandler(sw)})
	}
	return subs
}

func motionHandler(eng *engine.Engine, ch motion.Channel) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		r, err := motion.DecodeReading(ch, msg.Payload())
		if err != nil {
			monitoring.Logf("[engine] %s: %v", msg.Topic(), err)
			return
		}
		submitted(eng.SubmitMotion(r))
	}
}

func depthHandler(eng *engine.Engine, side triangulation.Side) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		r, err := triangulation.DecodeReading(side, msg.Payload())
		if err != nil {
			monitoring.Logf("[engine] %s: %v", msg.Topic(), err)
			return
		}
		submitted(eng.SubmitDepthReading(r))
	}
}

// submitted logs submit errors other than a full queue, which the engine counts.
func submitted(err error) {
	if err != nil && !errors.Is(err, engine.ErrQueueFull) {
		monitoring.Logf("[engine] submit: %v", err)
	}
}

func gateHandler(sw *gate.Switch) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		was := sw.ShouldUpdate()
		if err := sw.Set(string(msg.Payload())); err != nil {
			monitoring.Logf("[engine] %s: %v", msg.Topic(), err)
			return
		}
		if now := sw.ShouldUpdate(); now != was {
			state := "locked"
			if now {
				state = "unlocked"
			}
			monitoring.Logf("[engine] device %s", state)
		}
	}
}

// mqttPublisher publishes results as retained JSON messages.
type mqttPublisher struct {
	client           publishClient
	orientationTopic string
	triangleTopic    string
	qos              byte
}

func (p *mqttPublisher) PublishOrientation(pose orientation.Pose) {
	if err := publishJSON(p.client, p.orientationTopic, p.qos, true, pose); err != nil {
		monitoring.Logf("[engine] %v", err)
	}
}

func (p *mqttPublisher) PublishTriangle(r triangulation.Result) {
	if err := publishJSON(p.client, p.triangleTopic, p.qos, true, r); err != nil {
		monitoring.Logf("[engine] %v", err)
	}
}

func logStats(s engine.Stats) {
	monitoring.Logf("[engine] motion=%d depth=%d poses=%d triangles=%d degenerate=%d invalid=%d gated=%d waiting=%d dropped=%d",
		s.MotionEvents, s.DepthEvents, s.Poses, s.Triangles, s.Degenerate, s.Invalid, s.Gated, s.Waiting, s.Dropped)
}

func closeRecorder(rec *recorder.Recorder) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rec.Flush(ctx); err != nil {
		monitoring.Logf("[recorder] flush: %v", err)
	}
	if poses, triangles, err := rec.Counts(ctx); err == nil {
		monitoring.Logf("[recorder] session %s: %d poses, %d triangles (%d dropped)",
			rec.Session(), poses, triangles, rec.Dropped())
	}
	if err := rec.Close(); err != nil {
		monitoring.Logf("[recorder] close: %v", err)
	}
}
