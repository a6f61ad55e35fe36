// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Los Trencitos

package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/LOS-trencitos/trenctl/pkg/config"
	"github.com/LOS-trencitos/trenctl/pkg/control"
	"github.com/LOS-trencitos/trenctl/pkg/roster"
	"github.com/LOS-trencitos/trenctl/pkg/transport"
	"github.com/LOS-trencitos/trenctl/pkg/trenes"
)

var (
	configPath string
	backend    string
	simMode    bool
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "trenctl",
	Short: "Los Trencitos BLE train controller",
	Long: `Trenctl - A CLI tool for discovering, bonding and driving
Los Trencitos model trains over Bluetooth Low Energy.

Trains advertise the trencitos GATT service. An unbonded train exposes only
its advertised short name; bonding connects once and reads the full record
(long name, DCC code, speed, acceleration, direction) off the train. A
connected train can be driven and streams speed changes back as
notifications.

Transport backends:
  auto   Use the Bluetooth adapter, fall back to a stub when unavailable
  ble    Require the Bluetooth adapter
  sim    Simulated fleet, no hardware needed (also: --sim)

Settings are read from an optional YAML file (--config); flags override it.`,
	Version: "1.2.0",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "Transport backend (auto, ble, sim)")
	rootCmd.PersistentFlags().BoolVar(&simMode, "sim", false, "Shorthand for --backend sim")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig merges the configuration file with the persistent flags. Flags
// win over file settings.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if backend != "" {
		cfg.Transport.Backend = backend
	}
	if simMode {
		cfg.Transport.Backend = "sim"
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	level, _ := config.ParseLevel(cfg.Logging.Level)
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func newTransport(cfg config.Config, log *slog.Logger) transport.Adapter {
	simCfg := transport.SimConfig{
		DiscoveryInterval: msDuration(cfg.Sim.DiscoveryIntervalMs),
		OpDelay:           msDuration(cfg.Sim.OpDelayMs),
		NotifyInterval:    msDuration(cfg.Sim.NotifyIntervalMs),
		FleetSize:         cfg.Sim.FleetSize,
		Seed:              cfg.Sim.Seed,
	}
	return transport.New(transport.Backend(cfg.Transport.Backend), trenes.ServiceTrain, simCfg, log)
}

// newService builds the full controller stack from flags and configuration.
// The transport is returned alongside the service so verbs can refuse to run
// against the degraded no-op adapter, and the logger so verbs log through
// the same handler as the stack.
func newService() (*control.Service, transport.Adapter, config.Config, *slog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, config.Config{}, nil, fmt.Errorf("configuration: %w", err)
	}
	log := newLogger(cfg)
	tr := newTransport(cfg, log)
	return control.New(tr, roster.New(), log), tr, cfg, log, nil
}
