// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Los Trencitos
//
// Trenctl - Los Trencitos BLE train controller
//
// A CLI tool for discovering, bonding and driving Los Trencitos model
// trains over Bluetooth Low Energy.

package main

import (
	"os"

	"github.com/LOS-trencitos/trenctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
