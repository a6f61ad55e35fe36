// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Los Trencitos

package trenes

// Validation never fails: out-of-range values are clamped and over-long
// strings are truncated, so callers do not have to handle rejection paths.

// ClampSpeed clamps v to [MinSpeed, MaxSpeed].
func ClampSpeed(v int) int {
	if v < MinSpeed {
		return MinSpeed
	}
	if v > MaxSpeed {
		return MaxSpeed
	}
	return v
}

// ClampAcceleration clamps v to [MinAcceleration, MaxAcceleration].
func ClampAcceleration(v int) int {
	if v < MinAcceleration {
		return MinAcceleration
	}
	if v > MaxAcceleration {
		return MaxAcceleration
	}
	return v
}

// ClampDCCCode clamps v to [MinDCCCode, MaxDCCCode].
func ClampDCCCode(v int) int {
	if v < MinDCCCode {
		return MinDCCCode
	}
	if v > MaxDCCCode {
		return MaxDCCCode
	}
	return v
}

// TruncateLongName silently truncates s to MaxLongNameLen characters.
func TruncateLongName(s string) string {
	return truncateRunes(s, MaxLongNameLen)
}

// TruncateShortName silently truncates s to MaxShortNameLen characters.
func TruncateShortName(s string) string {
	return truncateRunes(s, MaxShortNameLen)
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
