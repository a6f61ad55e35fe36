// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Los Trencitos

package cmd

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/LOS-trencitos/trenctl/pkg/roster"
	"github.com/LOS-trencitos/trenctl/pkg/transport"
	"github.com/LOS-trencitos/trenctl/pkg/trenes"
)

var scanTimeout int

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover nearby trains",
	Long: `Scan for trains advertising the trencitos GATT service.

Every advertisement is folded into the device directory as it arrives, so a
train that advertises repeatedly is listed once. Trains that are already
bonded in this session stay in the bonded list.

Examples:
  # Scan the simulated fleet for five seconds
  trenctl scan --sim

  # Longer scan against real hardware
  trenctl scan --backend ble --timeout 15

Exit codes:
  0 - Scan successful (at least one train found)
  1 - Scan finished with no trains
  2 - Transport unavailable`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 5, "Scan duration in seconds")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(2)
	}
	log := newLogger(cfg)
	tr := newTransport(cfg, log)
	if _, ok := tr.(transport.Noop); ok {
		fmt.Fprintf(os.Stderr, "Transport error: no usable Bluetooth adapter\n")
		os.Exit(2)
	}

	fmt.Printf("Trenctl - Train Discovery\n")
	fmt.Printf("Backend: %s\n", cfg.Transport.Backend)
	fmt.Printf("Timeout: %d seconds\n\n", scanTimeout)

	var mu sync.Mutex
	seen := make(map[string]trenes.Record)
	if err := tr.StartScan(func(d transport.Discovery) {
		mu.Lock()
		defer mu.Unlock()
		if _, ok := seen[d.Address]; ok {
			return
		}
		rec := trenes.NewRecord(d.Address, d.ShortName)
		seen[d.Address] = rec
		fmt.Printf("Train found:\n")
		fmt.Printf("  Address: %s\n", rec.Address)
		fmt.Printf("  Name:    %s\n", rec.ShortName)
		fmt.Printf("  RSSI:    %d dBm\n", d.RSSI)
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Scan error: %v\n", err)
		os.Exit(2)
	}

	time.Sleep(time.Duration(scanTimeout) * time.Second)
	if err := tr.StopScan(); err != nil {
		log.Warn("[SCAN] Stop failed", "err", err)
	}

	mu.Lock()
	defer mu.Unlock()

	fmt.Printf("\n--- Scan summary ---\n")
	fmt.Printf("Trains found: %d\n", len(seen))

	if len(seen) == 0 {
		fmt.Printf("No trains discovered. Check train power and range.\n")
		os.Exit(1)
	}

	// Same presentation order as the directory gives unbonded trains.
	recs := make([]trenes.Record, 0, len(seen))
	for _, rec := range seen {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ShortName < recs[j].ShortName })
	fmt.Println()
	for _, rec := range recs {
		fmt.Printf("  %-10s %s\n", rec.ShortName, rec.Address)
	}

	return nil
}

// waitForRoster polls the directory through a subscription until cond holds
// or the deadline passes. Shared by the one-shot verbs.
func waitForRoster(dir *roster.Roster, timeout time.Duration, cond func(roster.Snapshot) bool) bool {
	events := make(chan roster.Snapshot, 64)
	dir.Subscribe(func(snap roster.Snapshot) {
		select {
		case events <- snap:
		default:
		}
	})
	if cond(dir.Snapshot()) {
		return true
	}
	// Some conditions (like session state) change without a directory event,
	// so poll as well.
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	deadline := time.After(timeout)
	for {
		select {
		case snap := <-events:
			if cond(snap) {
				return true
			}
		case <-tick.C:
			if cond(dir.Snapshot()) {
				return true
			}
		case <-deadline:
			return false
		}
	}
}
