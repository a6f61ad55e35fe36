// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Los Trencitos

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/LOS-trencitos/trenctl/pkg/control"
	"github.com/LOS-trencitos/trenctl/pkg/roster"
	"github.com/LOS-trencitos/trenctl/pkg/transport"
	"github.com/LOS-trencitos/trenctl/pkg/trenes"
)

var setTimeout int

var setCmd = &cobra.Command{
	Use:   "set <address> <field> [value]",
	Short: "Connect to a train and write one field",
	Long: `Connect to the train at the given address and write a single field.

Fields:
  speed         Target speed, 0 to 128 (out-of-range values are clamped)
  acceleration  Acceleration, -3 to 3 (clamped)
  direction     One of: stop, right, left (anything else means stop)
  long-name     Free text, truncated to 100 characters
  network-key   Network credential; the value is prompted for when omitted,
                so it does not end up in shell history

The write goes to the train first; the local record is only updated after
the train acknowledges. A failed write leaves the record untouched.

Examples:
  trenctl set SIM:00:01 speed 80 --sim
  trenctl set E4:B3:23:A1:00:07 direction left --backend ble
  trenctl set E4:B3:23:A1:00:07 network-key

Exit codes:
  0 - Field written and acknowledged
  1 - Train not found, or the write was not acknowledged in time
  2 - Transport unavailable or invalid arguments`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runSet,
}

func init() {
	rootCmd.AddCommand(setCmd)
	setCmd.Flags().IntVar(&setTimeout, "timeout", 10, "Seconds to wait for each step")
}

func runSet(cmd *cobra.Command, args []string) error {
	address, field := args[0], args[1]

	value := ""
	if len(args) == 3 {
		value = args[2]
	} else if field == "network-key" {
		fmt.Fprintf(os.Stderr, "Network key for %s: ", address)
		keyBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read key: %v\n", err)
			os.Exit(2)
		}
		value = string(keyBytes)
	} else {
		fmt.Fprintf(os.Stderr, "Field %s requires a value\n", field)
		os.Exit(2)
	}

	apply, check, err := buildFieldWrite(field, value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	svc, tr, _, _, err := newService()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(2)
	}
	defer svc.Shutdown()
	if _, ok := tr.(transport.Noop); ok {
		fmt.Fprintf(os.Stderr, "Transport error: no usable Bluetooth adapter\n")
		os.Exit(2)
	}

	timeout := time.Duration(setTimeout) * time.Second

	// The train has to advertise before it can be connected.
	svc.StartScanning()
	found := waitForRoster(svc.Roster(), timeout, func(roster.Snapshot) bool {
		_, ok := svc.Roster().Get(address)
		return ok
	})
	svc.StopScanning()
	if !found {
		fmt.Printf("Train %s did not advertise within %ds\n", address, setTimeout)
		os.Exit(1)
	}

	svc.Connect(address)
	connected := waitForRoster(svc.Roster(), timeout, func(roster.Snapshot) bool {
		return svc.ConnectedAddress() == address
	})
	if !connected {
		fmt.Printf("Could not connect to %s within %ds\n", address, setTimeout)
		os.Exit(1)
	}

	apply(svc)
	acked := waitForRoster(svc.Roster(), timeout, func(roster.Snapshot) bool {
		rec, ok := svc.Roster().Get(address)
		return ok && check(rec)
	})
	if !acked {
		fmt.Printf("Write was not acknowledged within %ds\n", setTimeout)
		os.Exit(1)
	}

	rec, _ := svc.Roster().Get(address)
	fmt.Printf("%s: %s = %s\n", rec.ShortName, field, describeField(field, rec))
	return nil
}

// buildFieldWrite maps a field name and raw value to the service call that
// writes it and the predicate that confirms the record took the value.
func buildFieldWrite(field, value string) (func(*control.Service), func(trenes.Record) bool, error) {
	switch field {
	case "speed":
		v, err := strconv.Atoi(value)
		if err != nil {
			return nil, nil, fmt.Errorf("speed must be a number, got %q", value)
		}
		want := trenes.ClampSpeed(v)
		return func(s *control.Service) { s.SetSpeed(v) },
			func(r trenes.Record) bool { return r.Speed == want }, nil

	case "acceleration":
		v, err := strconv.Atoi(value)
		if err != nil {
			return nil, nil, fmt.Errorf("acceleration must be a number, got %q", value)
		}
		want := trenes.ClampAcceleration(v)
		return func(s *control.Service) { s.SetAcceleration(v) },
			func(r trenes.Record) bool { return r.Acceleration == want }, nil

	case "direction":
		want := trenes.ParseDirection([]byte(value))
		return func(s *control.Service) { s.SetDirection(want) },
			func(r trenes.Record) bool { return r.Direction == want }, nil

	case "long-name":
		want := trenes.TruncateLongName(value)
		return func(s *control.Service) { s.SetLongName(value) },
			func(r trenes.Record) bool { return r.LongName == want }, nil

	case "network-key":
		return func(s *control.Service) { s.SetNetworkKey(value) },
			func(r trenes.Record) bool { return r.NetworkKey == value }, nil

	default:
		return nil, nil, fmt.Errorf("unknown field %q (speed, acceleration, direction, long-name, network-key)", field)
	}
}

func describeField(field string, rec trenes.Record) string {
	switch field {
	case "speed":
		return strconv.Itoa(rec.Speed)
	case "acceleration":
		return strconv.Itoa(rec.Acceleration)
	case "direction":
		return string(rec.Direction)
	case "long-name":
		return rec.LongName
	case "network-key":
		return "(updated)"
	default:
		return ""
	}
}
