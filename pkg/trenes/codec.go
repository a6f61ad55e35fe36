// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Los Trencitos

package trenes

import (
	"encoding/binary"
	"fmt"
)

// Characteristic payload layouts:
//
//	long name     UTF-8 bytes, variable length
//	DCC code      4-byte little-endian integer
//	speed         1 byte, unsigned
//	acceleration  1 byte, signed
//	direction     short status code string as raw bytes
//	network key   raw bytes, opaque
//
// Decoders clamp values into their valid ranges rather than rejecting them.

// DecodeSpeed decodes a one-byte unsigned speed payload.
func DecodeSpeed(data []byte) (int, error) {
	if len(data) < 1 {
		return 0, fmt.Errorf("speed payload empty")
	}
	return ClampSpeed(int(data[0])), nil
}

// EncodeSpeed encodes a speed value as a single unsigned byte.
func EncodeSpeed(v int) []byte {
	return []byte{byte(ClampSpeed(v))}
}

// DecodeAcceleration decodes a one-byte signed acceleration payload.
func DecodeAcceleration(data []byte) (int, error) {
	if len(data) < 1 {
		return 0, fmt.Errorf("acceleration payload empty")
	}
	return ClampAcceleration(int(int8(data[0]))), nil
}

// EncodeAcceleration encodes an acceleration value as a single signed byte.
func EncodeAcceleration(v int) []byte {
	return []byte{byte(int8(ClampAcceleration(v)))}
}

// DecodeDCCCode decodes a 4-byte little-endian DCC decoder code.
func DecodeDCCCode(data []byte) (int, error) {
	if len(data) < 4 {
		return 0, fmt.Errorf("dcc payload too short: %d bytes", len(data))
	}
	return ClampDCCCode(int(int32(binary.LittleEndian.Uint32(data)))), nil
}

// EncodeDCCCode encodes a DCC decoder code as 4 little-endian bytes.
func EncodeDCCCode(v int) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(int32(ClampDCCCode(v))))
	return buf
}

// DecodeLongName decodes a UTF-8 long name payload.
func DecodeLongName(data []byte) (string, error) {
	return TruncateLongName(string(data)), nil
}

// EncodeLongName encodes a long name as UTF-8 bytes, truncated to the limit.
func EncodeLongName(s string) []byte {
	return []byte(TruncateLongName(s))
}

// EncodeDirection encodes a direction as its status code bytes.
func EncodeDirection(d Direction) []byte {
	return []byte(d)
}

// DecodeNetworkKey decodes a network key payload. The key is opaque and is
// not validated.
func DecodeNetworkKey(data []byte) (string, error) {
	return string(data), nil
}

// EncodeNetworkKey encodes a network key as raw bytes.
func EncodeNetworkKey(s string) []byte {
	return []byte(s)
}
