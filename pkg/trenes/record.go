// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Los Trencitos

package trenes

// Record holds the identity and last-known characteristic values of one
// train device. Address is the transport-assigned identifier and is the
// unique key for the device everywhere in this codebase. ShortName is the
// advertised label captured at discovery time; it does not change afterwards.
type Record struct {
	Address      string
	ShortName    string
	LongName     string
	DCCCode      int
	Speed        int
	Acceleration int
	Direction    Direction
	NetworkKey   string
	Bonded       bool
}

// NewRecord creates a record for a freshly discovered, not yet bonded device.
// The short name is truncated to the advertised-label limit and the direction
// defaults to stop.
func NewRecord(address, shortName string) Record {
	return Record{
		Address:   address,
		ShortName: TruncateShortName(shortName),
		Direction: DirectionStop,
	}
}
