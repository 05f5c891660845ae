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

	log.Println("starting gaze-computer engine (MQTT in, orientation and triangle out)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunEngine(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
