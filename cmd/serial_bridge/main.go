// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/gaze_computer/internal/app"
	"github.com/relabs-tech/gaze_computer/internal/config"
)

func main() {
	configPath := flag.String("config", "gaze_config.yaml", "path to the YAML configuration file")
	flag.Parse()

	log.Println("starting gaze-computer serial bridge (IMU sentences to MQTT)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	log.Println("Note: the serial bridge needs read access to the port (dialout group or sudo)")

	if err := app.RunSerialBridge(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
