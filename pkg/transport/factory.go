// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Los Trencitos

package transport

import "log/slog"

// Backend selects which adapter variant the factory builds.
type Backend string

const (
	// BackendAuto probes the host Bluetooth adapter and falls back to the
	// no-op adapter when none is usable.
	BackendAuto Backend = "auto"
	// BackendBLE requires the host Bluetooth adapter.
	BackendBLE Backend = "ble"
	// BackendSim uses the simulated fleet.
	BackendSim Backend = "sim"
)

// New builds a transport adapter. The choice between variants is an explicit
// tagged one: a simulated fleet when asked for, otherwise the real stack,
// degrading to the no-op adapter when the availability probe fails in auto
// mode. Callers never see an error; an unusable transport logs and yields a
// transport whose operations are silent no-ops.
func New(backend Backend, serviceUUID string, simCfg SimConfig, log *slog.Logger) Adapter {
	switch backend {
	case BackendSim:
		log.Info("[TRANSPORT] Using simulated fleet")
		return NewSimulated(simCfg, log)

	case BackendBLE:
		ble, err := NewBLE(serviceUUID, log)
		if err != nil {
			log.Error("[TRANSPORT] Bluetooth adapter unusable", "err", err)
			return Noop{}
		}
		return ble

	default: // BackendAuto
		ble, err := NewBLE(serviceUUID, log)
		if err != nil {
			log.Warn("[TRANSPORT] No Bluetooth adapter, operations will be no-ops", "err", err)
			return Noop{}
		}
		return ble
	}
}

// Noop is the degraded adapter used when the host has no Bluetooth stack.
// Scans discover nothing, connects succeed vacuously, and characteristic
// operations report ErrUnavailable, which callers log and drop.
type Noop struct{}

func (Noop) StartScan(func(Discovery)) error { return nil }
func (Noop) StopScan() error                 { return nil }
func (Noop) Connect(string) error            { return ErrUnavailable }
func (Noop) Disconnect() error               { return nil }

func (Noop) Read(string, string) ([]byte, error)            { return nil, ErrUnavailable }
func (Noop) Write(string, string, []byte, bool) error       { return ErrUnavailable }
func (Noop) Subscribe(string, string, func([]byte)) error   { return ErrUnavailable }
func (Noop) Unsubscribe(serviceUUID, charUUID string) error { return nil }
