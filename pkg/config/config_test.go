// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Los Trencitos

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trenctl.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transport.Backend != "auto" {
		t.Errorf("backend = %q, want auto", cfg.Transport.Backend)
	}
	if cfg.Bridge.Port != 8791 {
		t.Errorf("bridge port = %d, want 8791", cfg.Bridge.Port)
	}
	if cfg.Sim.FleetSize != 6 {
		t.Errorf("fleet size = %d, want 6", cfg.Sim.FleetSize)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
transport:
  backend: sim
logging:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transport.Backend != "sim" {
		t.Errorf("backend = %q, want sim", cfg.Transport.Backend)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Bridge.Path != "/ws" {
		t.Errorf("bridge path = %q, want default /ws", cfg.Bridge.Path)
	}
	if cfg.Sim.OpDelayMs != 150 {
		t.Errorf("op delay = %d, want default 150", cfg.Sim.OpDelayMs)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad backend", func(c *Config) { c.Transport.Backend = "serial" }},
		{"port too high", func(c *Config) { c.Bridge.Port = 70000 }},
		{"port zero", func(c *Config) { c.Bridge.Port = 0 }},
		{"relative path", func(c *Config) { c.Bridge.Path = "ws" }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"negative fleet", func(c *Config) { c.Sim.FleetSize = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLevel(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if _, err := ParseLevel("shouting"); err == nil {
		t.Error("expected error for unknown level")
	}
}
