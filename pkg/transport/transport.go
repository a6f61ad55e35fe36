// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Los Trencitos

// Package transport abstracts the BLE link to the trains behind a small
// adapter interface, with three implementations: the real host Bluetooth
// stack, a simulated fleet for development without hardware, and a no-op
// adapter used when the host has no usable Bluetooth adapter at all.
package transport

import "errors"

// ErrUnavailable is returned by adapters that have no usable transport
// underneath (no Bluetooth hardware, or no connected peripheral).
var ErrUnavailable = errors.New("transport unavailable")

// ErrNotConnected is returned by characteristic operations when no
// peripheral is connected.
var ErrNotConnected = errors.New("no connected peripheral")

// Discovery describes one advertisement event seen during scanning.
type Discovery struct {
	// Address is the stable transport-assigned identifier of the peripheral.
	Address string
	// ShortName is the advertised local name, possibly empty.
	ShortName string
	// RSSI is the received signal strength in dBm.
	RSSI int
}

// Adapter is the capability contract against the underlying GATT stack.
//
// An adapter manages at most one connected peripheral at a time: Connect
// tears down any previous session, including its notification subscription,
// before establishing the new one. Characteristic operations act on the
// currently connected peripheral and fail with ErrNotConnected otherwise.
//
// Implementations are safe for concurrent use. Scan and notification
// callbacks are invoked from adapter-owned goroutines.
type Adapter interface {
	// StartScan begins an open-ended scan, invoking onDiscover for every
	// advertisement that exposes the train service. Repeat advertisements
	// for a known address are reported again, not de-duplicated.
	StartScan(onDiscover func(Discovery)) error
	// StopScan disarms the scan callback. Safe to call when not scanning.
	StopScan() error

	// Connect establishes a session with the peripheral discovered at
	// address. The address must have been seen by a scan since this adapter
	// was created; the live peripheral handle is captured at discovery time.
	Connect(address string) error
	// Disconnect tears down the current session, if any.
	Disconnect() error

	// Read reads the value of one characteristic.
	Read(serviceUUID, charUUID string) ([]byte, error)
	// Write writes data to one characteristic, with or without response.
	Write(serviceUUID, charUUID string, data []byte, withResponse bool) error

	// Subscribe enables notifications on one characteristic. At most one
	// subscription is active per adapter; subscribing again replaces it.
	Subscribe(serviceUUID, charUUID string, onData func([]byte)) error
	// Unsubscribe disables the active notification subscription, if any.
	Unsubscribe(serviceUUID, charUUID string) error
}
