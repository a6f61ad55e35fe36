// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Los Trencitos

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/LOS-trencitos/trenctl/pkg/roster"
	"github.com/LOS-trencitos/trenctl/pkg/transport"
)

var bondTimeout int

var bondCmd = &cobra.Command{
	Use:   "bond <address>",
	Short: "Bond with a train and read its full record",
	Long: `Bond with the train at the given address.

Bonding scans until the train advertises, connects once, reads every
characteristic of the train record (long name, DCC code, speed,
acceleration, direction, network key) and disconnects. The train then moves
from the unbonded list to the bonded list for the rest of the session.

A characteristic that fails to read is logged and skipped; the record keeps
its default for that field. Bonding itself only fails when the train never
advertises or the connection cannot be made.

Examples:
  # Bond with a simulated train
  trenctl bond SIM:00:01 --sim

  # Bond with real hardware, allowing a longer scan
  trenctl bond E4:B3:23:A1:00:07 --backend ble --timeout 20

Exit codes:
  0 - Bonded, record printed
  1 - Train not found or bonding did not complete in time
  2 - Transport unavailable`,
	Args: cobra.ExactArgs(1),
	RunE: runBond,
}

func init() {
	rootCmd.AddCommand(bondCmd)
	bondCmd.Flags().IntVar(&bondTimeout, "timeout", 10, "Seconds to wait for the train")
}

func runBond(cmd *cobra.Command, args []string) error {
	address := args[0]

	svc, tr, cfg, _, err := newService()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(2)
	}
	defer svc.Shutdown()
	if _, ok := tr.(transport.Noop); ok {
		fmt.Fprintf(os.Stderr, "Transport error: no usable Bluetooth adapter\n")
		os.Exit(2)
	}

	timeout := time.Duration(bondTimeout) * time.Second

	fmt.Printf("Trenctl - Bonding\n")
	fmt.Printf("Backend: %s\n", cfg.Transport.Backend)
	fmt.Printf("Train:   %s\n\n", address)

	// The train has to advertise before it can be bonded.
	fmt.Printf("Scanning for %s...\n", address)
	svc.StartScanning()
	found := waitForRoster(svc.Roster(), timeout, func(snap roster.Snapshot) bool {
		_, ok := svc.Roster().Get(address)
		return ok
	})
	svc.StopScanning()
	if !found {
		fmt.Printf("Train %s did not advertise within %ds\n", address, bondTimeout)
		os.Exit(1)
	}

	fmt.Printf("Found. Bonding...\n")
	svc.Bond(address)
	bonded := waitForRoster(svc.Roster(), timeout, func(snap roster.Snapshot) bool {
		rec, ok := svc.Roster().Get(address)
		return ok && rec.Bonded
	})
	if !bonded {
		fmt.Printf("Bonding did not complete within %ds\n", bondTimeout)
		os.Exit(1)
	}

	rec, _ := svc.Roster().Get(address)
	fmt.Printf("\nBonded:\n")
	fmt.Printf("  Address:      %s\n", rec.Address)
	fmt.Printf("  Short name:   %s\n", rec.ShortName)
	fmt.Printf("  Long name:    %s\n", rec.LongName)
	fmt.Printf("  DCC code:     %d\n", rec.DCCCode)
	fmt.Printf("  Speed:        %d\n", rec.Speed)
	fmt.Printf("  Acceleration: %d\n", rec.Acceleration)
	fmt.Printf("  Direction:    %s\n", rec.Direction)

	return nil
}
