// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/gaze_computer/internal/config"
	"github.com/relabs-tech/gaze_computer/internal/monitoring"
	"github.com/relabs-tech/gaze_computer/internal/orientation"
	"github.com/relabs-tech/gaze_computer/internal/triangulation"
)

// RunConsoleMQTT prints every orientation and triangle message until interrupted.
func RunConsoleMQTT() error {
	cfg := config.Get()
	if cfg == nil {
		return errNoConfig
	}

	client, err := connectMQTT(cfg.MQTT, "console",
		subscription{cfg.Topics.Orientation, consolePoseHandler(os.Stdout)},
		subscription{cfg.Topics.Triangle, consoleTriangleHandler(os.Stdout)},
	)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	<-ctx.Done()

	monitoring.Logf("[console] shutting down")
	disconnect(client)
	return nil
}

func consolePoseHandler(w io.Writer) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		var p orientation.Pose
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			monitoring.Logf("[console] pose unmarshal error: %v", err)
			return
		}
		fmt.Fprintln(w, formatPose(p))
	}
}

func consoleTriangleHandler(w io.Writer) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		var r triangulation.Result
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			monitoring.Logf("[console] triangle unmarshal error: %v", err)
			return
		}
		fmt.Fprintln(w, formatTriangle(r))
	}
}

func formatPose(p orientation.Pose) string {
	return fmt.Sprintf("[POSE] YAW=%7.2f  PITCH=%7.2f  ROLL=%7.2f", p.Yaw, p.Pitch, p.Roll)
}

func formatTriangle(r triangulation.Result) string {
	return fmt.Sprintf("[TRI ] L=%7.2fmm R=%7.2fmm  ALPHA=%6.2f BETA=%6.2f GAMMA=%6.2f",
		r.LeftMM, r.RightMM, r.Alpha, r.Beta, r.Gamma)
}
