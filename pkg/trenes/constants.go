// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Los Trencitos

// Package trenes defines the data model for Trencitos model-train devices:
// the device record, the field validation rules, and the byte-level codecs
// for the GATT characteristics the trains expose.
//
// The package is transport-agnostic. Service and characteristic identifiers
// are plain UUID strings so that callers can address whatever GATT stack is
// underneath without importing it here.
package trenes

// Train GATT service and characteristic UUIDs.
// Base: 5452xxxx-7472-656e-6369-746f73626c65 ("TR" + "trencitosble").
const (
	ServiceTrain = "54520001-7472-656e-6369-746f73626c65"

	CharLongName     = "54520002-7472-656e-6369-746f73626c65"
	CharDCCCode      = "54520003-7472-656e-6369-746f73626c65"
	CharSpeed        = "54520004-7472-656e-6369-746f73626c65"
	CharAcceleration = "54520005-7472-656e-6369-746f73626c65"
	CharDirection    = "54520006-7472-656e-6369-746f73626c65"
	CharNetworkKey   = "54520007-7472-656e-6369-746f73626c65"
)

// Field limits
const (
	MinSpeed = 0
	MaxSpeed = 128

	MinAcceleration = -3
	MaxAcceleration = 3

	MinDCCCode = 0
	MaxDCCCode = 30000

	MaxLongNameLen  = 100
	MaxShortNameLen = 8
)

// Direction is the running direction reported and commanded through the
// direction characteristic.
type Direction string

const (
	DirectionStop  Direction = "stop"
	DirectionRight Direction = "right"
	DirectionLeft  Direction = "left"
)

// ParseDirection maps a characteristic payload to a Direction. Unknown codes
// fall back to DirectionStop, matching the permissive validation policy.
func ParseDirection(data []byte) Direction {
	switch Direction(data) {
	case DirectionRight:
		return DirectionRight
	case DirectionLeft:
		return DirectionLeft
	default:
		return DirectionStop
	}
}
