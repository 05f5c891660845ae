// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"errors"
	"io"

	"github.com/relabs-tech/gaze_computer/internal/config"
	"github.com/relabs-tech/gaze_computer/internal/monitoring"
	"github.com/relabs-tech/gaze_computer/internal/motion"
	"github.com/relabs-tech/gaze_computer/internal/sensors"
)

// RunSerialBridge reads IMU sentences from the serial port and publishes
// each sample to the accel or mag topic.
func RunSerialBridge() error {
	cfg := config.Get()
	if cfg == nil {
		return errNoConfig
	}

	client, err := connectMQTT(cfg.MQTT, "serial")
	if err != nil {
		return err
	}
	defer disconnect(client)

	port, err := sensors.OpenSerial(cfg.Serial)
	if err != nil {
		return err
	}
	defer port.Close()
	monitoring.Logf("[serial] port opened on %s at %d baud", cfg.Serial.Port, cfg.Serial.BaudRate)

	ctx, stop := signalContext()
	defer stop()
	go func() {
		<-ctx.Done()
		// unblocks the pending read
		port.Close()
	}()

	src := sensors.NewLineSource(port)
	n, err := forwardReadings(src, func(r motion.Reading) error {
		topic := cfg.Topics.Accel
		if r.Channel == motion.Mag {
			topic = cfg.Topics.Mag
		}
		return publishJSON(client, topic, cfg.MQTT.QoS, false, r)
	})
	monitoring.Logf("[serial] forwarded %d readings, skipped %d lines", n, src.Skipped)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// forwardReadings passes every reading from src to publish until src
// fails. io.EOF ends the stream cleanly.
func forwardReadings(src motion.ReadingSource, publish func(motion.Reading) error) (int, error) {
	n := 0
	for {
		r, err := src.NextReading()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if err := publish(r); err != nil {
			monitoring.Logf("[serial] publish error: %v", err)
			continue
		}
		n++
	}
}
