// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Los Trencitos

package transport

import (
	"fmt"
	"log/slog"
	"sync"

	"tinygo.org/x/bluetooth"
)

// BLE drives the host Bluetooth adapter in the central role. Peripheral
// handles are captured from scan results and kept by address so that a later
// Connect can reach the device without rescanning.
type BLE struct {
	log     *slog.Logger
	adapter *bluetooth.Adapter
	filter  bluetooth.UUID

	mu       sync.Mutex
	scanning bool
	handles  map[string]bluetooth.Address
	session  *bleSession
}

type bleSession struct {
	device bluetooth.Device
	chars  map[string]bluetooth.DeviceCharacteristic
	subbed string // characteristic UUID with active notifications, empty if none
}

// NewBLE enables the default host adapter and returns a transport filtered
// to advertisements exposing serviceUUID. Fails when the host has no usable
// Bluetooth adapter.
func NewBLE(serviceUUID string, log *slog.Logger) (*BLE, error) {
	filter, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return nil, fmt.Errorf("invalid service uuid %q: %w", serviceUUID, err)
	}

	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("enable bluetooth adapter: %w", err)
	}

	log.Info("[BLE] Adapter enabled")
	return &BLE{
		log:     log,
		adapter: adapter,
		filter:  filter,
		handles: make(map[string]bluetooth.Address),
	}, nil
}

func (b *BLE) StartScan(onDiscover func(Discovery)) error {
	b.mu.Lock()
	if b.scanning {
		b.mu.Unlock()
		return nil
	}
	b.scanning = true
	b.mu.Unlock()

	b.log.Info("[BLE] Scan started")

	// adapter.Scan blocks until StopScan, so it runs on its own goroutine.
	go func() {
		err := b.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			if !result.HasServiceUUID(b.filter) {
				return
			}

			addr := result.Address.String()
			b.mu.Lock()
			b.handles[addr] = result.Address
			b.mu.Unlock()

			onDiscover(Discovery{
				Address:   addr,
				ShortName: result.LocalName(),
				RSSI:      int(result.RSSI),
			})
		})
		if err != nil {
			b.log.Error("[BLE] Scan failed", "err", err)
		}

		b.mu.Lock()
		b.scanning = false
		b.mu.Unlock()
	}()

	return nil
}

func (b *BLE) StopScan() error {
	b.mu.Lock()
	scanning := b.scanning
	b.mu.Unlock()
	if !scanning {
		return nil
	}

	b.log.Info("[BLE] Scan stopped")
	return b.adapter.StopScan()
}

func (b *BLE) Connect(address string) error {
	b.mu.Lock()
	handle, ok := b.handles[address]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("no peripheral handle for %s (not seen in scan)", address)
	}

	// Single-connection design: retire the previous session first.
	if err := b.Disconnect(); err != nil {
		b.log.Warn("[BLE] Disconnect of previous session failed", "err", err)
	}

	device, err := b.adapter.Connect(handle, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("connect %s: %w", address, err)
	}

	services, err := device.DiscoverServices([]bluetooth.UUID{b.filter})
	if err != nil || len(services) == 0 {
		_ = device.Disconnect()
		return fmt.Errorf("discover train service on %s: %w", address, err)
	}

	chars, err := services[0].DiscoverCharacteristics(nil)
	if err != nil {
		_ = device.Disconnect()
		return fmt.Errorf("discover characteristics on %s: %w", address, err)
	}

	session := &bleSession{
		device: device,
		chars:  make(map[string]bluetooth.DeviceCharacteristic, len(chars)),
	}
	for _, c := range chars {
		session.chars[c.UUID().String()] = c
	}

	b.mu.Lock()
	b.session = session
	b.mu.Unlock()

	b.log.Info("[BLE] Connected", "address", address, "characteristics", len(chars))
	return nil
}

func (b *BLE) Disconnect() error {
	b.mu.Lock()
	session := b.session
	b.session = nil
	b.mu.Unlock()

	if session == nil {
		return nil
	}
	return session.device.Disconnect()
}

func (b *BLE) Read(serviceUUID, charUUID string) ([]byte, error) {
	char, err := b.characteristic(charUUID)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 512)
	n, err := char.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", charUUID, err)
	}
	return buf[:n], nil
}

func (b *BLE) Write(serviceUUID, charUUID string, data []byte, withResponse bool) error {
	char, err := b.characteristic(charUUID)
	if err != nil {
		return err
	}

	// The tinygo GATT client only exposes write-without-response; the
	// acknowledged-write contract is carried by the call's error return.
	if _, err := char.WriteWithoutResponse(data); err != nil {
		return fmt.Errorf("write %s: %w", charUUID, err)
	}
	return nil
}

func (b *BLE) Subscribe(serviceUUID, charUUID string, onData func([]byte)) error {
	char, err := b.characteristic(charUUID)
	if err != nil {
		return err
	}

	err = char.EnableNotifications(func(buf []byte) {
		// The stack reuses buf; hand subscribers their own copy.
		data := make([]byte, len(buf))
		copy(data, buf)
		onData(data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", charUUID, err)
	}

	b.mu.Lock()
	if b.session != nil {
		b.session.subbed = charUUID
	}
	b.mu.Unlock()
	return nil
}

func (b *BLE) Unsubscribe(serviceUUID, charUUID string) error {
	char, err := b.characteristic(charUUID)
	if err != nil {
		return err
	}

	b.mu.Lock()
	if b.session != nil {
		b.session.subbed = ""
	}
	b.mu.Unlock()

	return char.EnableNotifications(nil)
}

func (b *BLE) characteristic(charUUID string) (bluetooth.DeviceCharacteristic, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return bluetooth.DeviceCharacteristic{}, ErrNotConnected
	}
	char, ok := b.session.chars[charUUID]
	if !ok {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("characteristic %s not present on peripheral", charUUID)
	}
	return char, nil
}
