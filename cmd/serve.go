// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Los Trencitos

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/LOS-trencitos/trenctl/pkg/bridge"
)

var (
	serveListen string
	serveScan   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the fleet over a WebSocket bridge",
	Long: `Run a WebSocket bridge for external user interfaces.

Clients connect to the bridge endpoint and receive the current fleet state
immediately, then one snapshot frame for every change: discoveries, bonds,
record updates and live speed notifications. Clients steer the fleet by
sending intent frames:

  {"action": "scan_start"}
  {"action": "scan_stop"}
  {"action": "bond",    "address": "..."}
  {"action": "connect", "address": "..."}
  {"action": "set", "field": "speed", "value": "80"}

Set fields: speed, acceleration, direction, long_name, network_key. Numeric
values are sent as decimal strings.

Examples:
  # Bridge the simulated fleet on the default port
  trenctl serve --sim

  # Real hardware, custom listen address, scanning from the start
  trenctl serve --backend ble --listen 0.0.0.0:9000 --scan`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (host:port), overrides config")
	serveCmd.Flags().BoolVar(&serveScan, "scan", false, "Start scanning immediately")
}

func runServe(cmd *cobra.Command, args []string) error {
	svc, _, cfg, log, err := newService()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(2)
	}
	defer svc.Shutdown()

	addr := serveListen
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", cfg.Bridge.Host, cfg.Bridge.Port)
	}

	if serveScan {
		svc.StartScanning()
	}

	srv := bridge.NewServer(svc, cfg.Bridge.Path, log)

	fmt.Printf("Trenctl bridge on ws://%s%s (backend: %s)\n", addr, cfg.Bridge.Path, cfg.Transport.Backend)
	return srv.ListenAndServe(addr)
}
