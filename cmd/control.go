// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Los Trencitos

package cmd

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/LOS-trencitos/trenctl/pkg/roster"
	"github.com/LOS-trencitos/trenctl/pkg/transport"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for driving trains",
	Long: `Drive trains via an interactive terminal UI.

The TUI scans continuously while open. Unbonded trains appear with their
advertised short name; bonding reads the full record off the train and moves
it into the bonded section. Connecting to a bonded train selects it for
driving and live speed updates stream in from the train.

Keys:
  Tab        Switch focus between train list, speed input and action button
  Enter      Bond/connect the highlighted train, or apply the speed input
  Up/Down    Navigate the train list
  +/-        Nudge the speed of the connected train
  Left/Right Set direction
  Space      Stop (direction to stop)
  s          Toggle scanning
  q          Quit

Works against real hardware or the simulated fleet (--sim).`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

func runControl(cmd *cobra.Command, args []string) error {
	svc, tr, cfg, _, err := newService()
	if err != nil {
		return err
	}
	if _, ok := tr.(transport.Noop); ok {
		fmt.Fprintf(os.Stderr, "Transport error: no usable Bluetooth adapter (try --sim)\n")
		os.Exit(2)
	}

	m := initialControlModel(svc, cfg.Transport.Backend)

	p := tea.NewProgram(m, tea.WithAltScreen())

	// Pump directory changes into the TUI. Program.Send is safe from the
	// directory's notification goroutine.
	svc.Roster().Subscribe(func(snap roster.Snapshot) {
		p.Send(rosterChangedMsg{snap: snap})
	})

	svc.StartScanning()

	if _, err := p.Run(); err != nil {
		svc.Shutdown()
		return fmt.Errorf("TUI error: %v", err)
	}

	svc.Shutdown()
	return nil
}
