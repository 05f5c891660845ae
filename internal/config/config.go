// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration values.
type Config struct {
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Topics      TopicsConfig      `yaml:"topics"`
	Filter      FilterConfig      `yaml:"filter"`
	Orientation OrientationConfig `yaml:"orientation"`
	Depth       DepthConfig       `yaml:"depth"`
	Gate        GateConfig        `yaml:"gate"`
	Engine      EngineConfig      `yaml:"engine"`
	Web         WebConfig         `yaml:"web"`
	Serial      SerialConfig      `yaml:"serial"`
	Recorder    RecorderConfig    `yaml:"recorder"`
	Display     DisplayConfig     `yaml:"display"`
	Simulator   SimulatorConfig   `yaml:"simulator"`
}

type MQTTConfig struct {
	Broker         string        `yaml:"broker"`
	ClientIDPrefix string        `yaml:"client_id_prefix"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	QoS            byte          `yaml:"qos"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

type TopicsConfig struct {
	Accel       string `yaml:"accel"`
	Mag         string `yaml:"mag"`
	DepthLeft   string `yaml:"depth_left"`
	DepthRight  string `yaml:"depth_right"`
	Gate        string `yaml:"gate"`
	Orientation string `yaml:"orientation"`
	Triangle    string `yaml:"triangle"`
}

type FilterConfig struct {
	// Alpha is the low-pass coefficient shared by the yaw, pitch and roll filters.
	Alpha float64 `yaml:"alpha"`
}

type OrientationConfig struct {
	MinGravity      float64 `yaml:"min_gravity"`
	MinParallelSine float64 `yaml:"min_parallel_sine"`
}

type DepthConfig struct {
	BaselineMM float64 `yaml:"baseline_mm"`
	// Scale divides incoming depth values; the pipeline reports tenths of a millimetre.
	Scale float64 `yaml:"scale"`
}

// Gate modes.
const (
	GateAlways = "always"
	GateMQTT   = "mqtt"
	GateGPIO   = "gpio"
)

type GateConfig struct {
	Mode      string `yaml:"mode"` // "always", "mqtt" or "gpio"
	GPIOPin   string `yaml:"gpio_pin"`
	ActiveLow bool   `yaml:"active_low"`
}

type EngineConfig struct {
	QueueSize     int           `yaml:"queue_size"`
	LogValues     bool          `yaml:"log_values"`
	StatsInterval time.Duration `yaml:"stats_interval"`
}

type WebConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate uint   `yaml:"baud_rate"`
}

type RecorderConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

type DisplayConfig struct {
	I2CBus         string        `yaml:"i2c_bus"`
	I2CAddr        uint16        `yaml:"i2c_addr"`
	UpdateInterval time.Duration `yaml:"update_interval"`
}

type SimulatorConfig struct {
	MotionInterval time.Duration `yaml:"motion_interval"`
	DepthInterval  time.Duration `yaml:"depth_interval"`
	SubjectMM      float64       `yaml:"subject_mm"`
}

// Package-level singleton: InitGlobal sets it once, Get reads it.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file, applies defaults and validates it.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration with every default applied. Load decodes
// the file on top of it, so numeric keys where zero is meaningful keep an
// explicit zero and validate decides whether it is acceptable.
func Default() *Config {
	cfg := &Config{
		Filter:      FilterConfig{Alpha: 0.8},
		Orientation: OrientationConfig{MinGravity: 0.981, MinParallelSine: 0.01},
		Depth:       DepthConfig{BaselineMM: 6.3, Scale: 10},
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = "tcp://localhost:1883"
	}
	if c.MQTT.ClientIDPrefix == "" {
		c.MQTT.ClientIDPrefix = "gaze"
	}
	if c.MQTT.ConnectTimeout <= 0 {
		c.MQTT.ConnectTimeout = 10 * time.Second
	}

	if c.Topics.Accel == "" {
		c.Topics.Accel = "gaze/motion/accel"
	}
	if c.Topics.Mag == "" {
		c.Topics.Mag = "gaze/motion/mag"
	}
	if c.Topics.DepthLeft == "" {
		c.Topics.DepthLeft = "gaze/depth/left"
	}
	if c.Topics.DepthRight == "" {
		c.Topics.DepthRight = "gaze/depth/right"
	}
	if c.Topics.Gate == "" {
		c.Topics.Gate = "gaze/device/lock"
	}
	if c.Topics.Orientation == "" {
		c.Topics.Orientation = "gaze/orientation"
	}
	if c.Topics.Triangle == "" {
		c.Topics.Triangle = "gaze/triangle"
	}

	if c.Gate.Mode == "" {
		c.Gate.Mode = GateAlways
	}

	if c.Engine.QueueSize <= 0 {
		c.Engine.QueueSize = 64
	}
	if c.Engine.StatsInterval <= 0 {
		c.Engine.StatsInterval = 30 * time.Second
	}

	if c.Web.Addr == "" {
		c.Web.Addr = ":8080"
	}
	if c.Web.StaticDir == "" {
		c.Web.StaticDir = "web"
	}

	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = 115200
	}

	if c.Display.I2CAddr == 0 {
		c.Display.I2CAddr = 0x3C
	}
	if c.Display.UpdateInterval <= 0 {
		c.Display.UpdateInterval = 200 * time.Millisecond
	}

	if c.Simulator.MotionInterval <= 0 {
		c.Simulator.MotionInterval = 50 * time.Millisecond
	}
	if c.Simulator.DepthInterval <= 0 {
		c.Simulator.DepthInterval = 100 * time.Millisecond
	}
	if c.Simulator.SubjectMM <= 0 {
		c.Simulator.SubjectMM = 45
	}
}

// validate checks ranges and cross-field requirements.
func (c *Config) validate() error {
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0-2, got %d", c.MQTT.QoS)
	}
	if !(c.Filter.Alpha > 0 && c.Filter.Alpha <= 1) {
		return fmt.Errorf("filter.alpha must be in (0,1], got %v", c.Filter.Alpha)
	}
	if !(c.Orientation.MinGravity >= 0) {
		return fmt.Errorf("orientation.min_gravity must be >= 0, got %v", c.Orientation.MinGravity)
	}
	if !(c.Orientation.MinParallelSine >= 0 && c.Orientation.MinParallelSine < 1) {
		return fmt.Errorf("orientation.min_parallel_sine must be in [0,1), got %v", c.Orientation.MinParallelSine)
	}
	if !(c.Depth.BaselineMM > 0) {
		return fmt.Errorf("depth.baseline_mm must be > 0, got %v", c.Depth.BaselineMM)
	}
	if !(c.Depth.Scale > 0) {
		return fmt.Errorf("depth.scale must be > 0, got %v", c.Depth.Scale)
	}

	switch c.Gate.Mode {
	case GateAlways, GateMQTT:
	case GateGPIO:
		if c.Gate.GPIOPin == "" {
			return fmt.Errorf("gate.gpio_pin is required when gate.mode is 'gpio'")
		}
	default:
		return fmt.Errorf("gate.mode must be one of always, mqtt, gpio; got %q", c.Gate.Mode)
	}

	if c.Recorder.Enable && c.Recorder.Path == "" {
		return fmt.Errorf("recorder.path is required when recorder.enable is true")
	}
	return nil
}

// InitGlobal loads the configuration once. Later calls return the first
// call's error and do not reload.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration. InitGlobal must be called first,
// or this returns nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
