// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Los Trencitos

// Package config loads the trenctl configuration file. All settings are
// optional; the zero configuration file is valid and yields the defaults.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure, loaded from YAML.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Sim       SimConfig       `yaml:"sim"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// TransportConfig selects the transport backend.
type TransportConfig struct {
	// Backend is one of auto, ble, sim.
	Backend string `yaml:"backend"`
}

// SimConfig tunes the simulated fleet used by the sim backend.
type SimConfig struct {
	DiscoveryIntervalMs int   `yaml:"discovery_interval_ms"`
	OpDelayMs           int   `yaml:"op_delay_ms"`
	NotifyIntervalMs    int   `yaml:"notify_interval_ms"`
	FleetSize           int   `yaml:"fleet_size"`
	Seed                int64 `yaml:"seed"`
}

// BridgeConfig contains the WebSocket bridge listen settings.
type BridgeConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Transport: TransportConfig{Backend: "auto"},
		Sim: SimConfig{
			DiscoveryIntervalMs: 2000,
			OpDelayMs:           150,
			NotifyIntervalMs:    1000,
			FleetSize:           6,
		},
		Bridge: BridgeConfig{
			Host: "127.0.0.1",
			Port: 8791,
			Path: "/ws",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads and validates the configuration at path. An empty path returns
// the defaults. Settings absent from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for values that cannot be used.
func (c *Config) Validate() error {
	switch c.Transport.Backend {
	case "auto", "ble", "sim":
	default:
		return fmt.Errorf("transport.backend must be auto, ble or sim, got %q", c.Transport.Backend)
	}

	if c.Bridge.Port < 1 || c.Bridge.Port > 65535 {
		return fmt.Errorf("bridge.port out of range: %d", c.Bridge.Port)
	}
	if !strings.HasPrefix(c.Bridge.Path, "/") {
		return fmt.Errorf("bridge.path must start with /: %q", c.Bridge.Path)
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	if c.Sim.FleetSize < 0 || c.Sim.DiscoveryIntervalMs < 0 || c.Sim.OpDelayMs < 0 || c.Sim.NotifyIntervalMs < 0 {
		return fmt.Errorf("sim settings must not be negative")
	}

	return nil
}

// ParseLevel maps a configuration level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}
