// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Los Trencitos

// Package control orchestrates the train transport and the device roster.
//
// User intents (scan, bond, connect, set a field) are dispatched as
// independent units of work; callers never block on the transport and never
// see transport errors. Failures are logged and dropped, and the outcome of
// every intent is observed through the roster's published snapshots.
package control

import (
	"log/slog"
	"sync"

	"github.com/LOS-trencitos/trenctl/pkg/roster"
	"github.com/LOS-trencitos/trenctl/pkg/transport"
	"github.com/LOS-trencitos/trenctl/pkg/trenes"
)

// Service drives one transport adapter and one roster. At most one
// peripheral is connected and notifying at a time; bonding is a
// connect-read-disconnect cycle, not a persistent session.
type Service struct {
	log *slog.Logger
	tr  transport.Adapter
	dir *roster.Roster

	mu        sync.Mutex
	connected string // address of the live session, empty when none
	notifying bool
}

// New creates a control service over the given transport and roster.
func New(tr transport.Adapter, dir *roster.Roster, log *slog.Logger) *Service {
	return &Service{log: log, tr: tr, dir: dir}
}

// Roster returns the directory this service feeds.
func (s *Service) Roster() *roster.Roster {
	return s.dir
}

// StartScanning arms the discovery callback and begins an open-ended scan.
func (s *Service) StartScanning() {
	if err := s.tr.StartScan(s.onDiscover); err != nil {
		s.log.Error("[CONTROL] Scan start failed", "err", err)
	}
}

// StopScanning disarms the discovery callback.
func (s *Service) StopScanning() {
	if err := s.tr.StopScan(); err != nil {
		s.log.Error("[CONTROL] Scan stop failed", "err", err)
	}
}

// onDiscover integrates one advertisement into the roster. Repeat
// advertisements refresh the record; a device that has already bonded is
// left where it is.
func (s *Service) onDiscover(d transport.Discovery) {
	rec, ok := s.dir.Get(d.Address)
	if !ok {
		rec = trenes.NewRecord(d.Address, d.ShortName)
	}
	s.dir.UpsertUnbonded(rec)
}

// Bond runs the bonding cycle for address: connect, read every
// characteristic, mark the device bonded, disconnect. Asynchronous; the
// result appears in the roster.
func (s *Service) Bond(address string) {
	go s.bond(address)
}

func (s *Service) bond(address string) {
	s.dir.Select(address)

	if err := s.tr.Connect(address); err != nil {
		s.log.Error("[CONTROL] Bond connect failed", "address", address, "err", err)
		return
	}

	s.setSession(address, false)

	rec, ok := s.dir.Get(address)
	if !ok {
		rec = trenes.NewRecord(address, "")
	}
	s.readAll(&rec)

	s.dir.PromoteToBonded(rec)
	s.log.Info("[CONTROL] Bonded", "address", address, "dcc", rec.DCCCode)

	if err := s.tr.Disconnect(); err != nil {
		s.log.Warn("[CONTROL] Disconnect after bond failed", "address", address, "err", err)
	}
	s.clearSession()
}

// Connect establishes a driving session with address: connect, refresh the
// record from the device, subscribe to speed notifications. Connecting to a
// new device implicitly retires the previous session's subscription.
// Asynchronous; the result appears in the roster.
func (s *Service) Connect(address string) {
	go s.connect(address)
}

func (s *Service) connect(address string) {
	s.dir.Select(address)
	s.retireSubscription()

	if err := s.tr.Connect(address); err != nil {
		s.log.Error("[CONTROL] Connect failed", "address", address, "err", err)
		return
	}

	s.setSession(address, false)

	rec, ok := s.dir.Get(address)
	if !ok {
		rec = trenes.NewRecord(address, "")
	}
	s.readAll(&rec)

	if rec.Bonded {
		s.dir.UpdateBonded(rec)
	} else {
		s.dir.UpsertUnbonded(rec)
	}

	err := s.tr.Subscribe(trenes.ServiceTrain, trenes.CharSpeed, func(data []byte) {
		s.onSpeedNotification(address, data)
	})
	if err != nil {
		s.log.Error("[CONTROL] Speed subscription failed", "address", address, "err", err)
		return
	}

	s.setSession(address, true)
	s.log.Info("[CONTROL] Connected and notifying", "address", address)
}

func (s *Service) onSpeedNotification(address string, data []byte) {
	speed, err := trenes.DecodeSpeed(data)
	if err != nil {
		s.log.Warn("[CONTROL] Bad speed notification", "address", address, "err", err)
		return
	}

	rec, ok := s.dir.Get(address)
	if !ok {
		return
	}
	rec.Speed = speed
	if rec.Bonded {
		s.dir.UpdateBonded(rec)
	} else {
		s.dir.UpsertUnbonded(rec)
	}
}

// readAll performs the fixed sequence of characteristic reads, decoding each
// into rec. Every field read is independent: a failed read is logged and the
// field keeps its previous value.
func (s *Service) readAll(rec *trenes.Record) {
	reads := []struct {
		name  string
		char  string
		apply func([]byte) error
	}{
		{"long name", trenes.CharLongName, func(b []byte) error {
			v, err := trenes.DecodeLongName(b)
			if err == nil {
				rec.LongName = v
			}
			return err
		}},
		{"dcc code", trenes.CharDCCCode, func(b []byte) error {
			v, err := trenes.DecodeDCCCode(b)
			if err == nil {
				rec.DCCCode = v
			}
			return err
		}},
		{"speed", trenes.CharSpeed, func(b []byte) error {
			v, err := trenes.DecodeSpeed(b)
			if err == nil {
				rec.Speed = v
			}
			return err
		}},
		{"acceleration", trenes.CharAcceleration, func(b []byte) error {
			v, err := trenes.DecodeAcceleration(b)
			if err == nil {
				rec.Acceleration = v
			}
			return err
		}},
		{"direction", trenes.CharDirection, func(b []byte) error {
			rec.Direction = trenes.ParseDirection(b)
			return nil
		}},
		{"network key", trenes.CharNetworkKey, func(b []byte) error {
			v, err := trenes.DecodeNetworkKey(b)
			if err == nil {
				rec.NetworkKey = v
			}
			return err
		}},
	}

	for _, r := range reads {
		data, err := s.tr.Read(trenes.ServiceTrain, r.char)
		if err != nil {
			s.log.Warn("[CONTROL] Read failed, keeping previous value", "field", r.name, "err", err)
			continue
		}
		if err := r.apply(data); err != nil {
			s.log.Warn("[CONTROL] Decode failed, keeping previous value", "field", r.name, "err", err)
		}
	}
}

// SetSpeed writes a clamped speed to the connected device.
func (s *Service) SetSpeed(v int) {
	v = trenes.ClampSpeed(v)
	s.setField("speed", trenes.CharSpeed, trenes.EncodeSpeed(v), func(rec *trenes.Record) {
		rec.Speed = v
	})
}

// SetAcceleration writes a clamped acceleration to the connected device.
func (s *Service) SetAcceleration(v int) {
	v = trenes.ClampAcceleration(v)
	s.setField("acceleration", trenes.CharAcceleration, trenes.EncodeAcceleration(v), func(rec *trenes.Record) {
		rec.Acceleration = v
	})
}

// SetDirection writes a direction code to the connected device.
func (s *Service) SetDirection(d trenes.Direction) {
	s.setField("direction", trenes.CharDirection, trenes.EncodeDirection(d), func(rec *trenes.Record) {
		rec.Direction = d
	})
}

// SetLongName writes a truncated display name to the connected device.
func (s *Service) SetLongName(name string) {
	name = trenes.TruncateLongName(name)
	s.setField("long name", trenes.CharLongName, trenes.EncodeLongName(name), func(rec *trenes.Record) {
		rec.LongName = name
	})
}

// SetNetworkKey writes the network key to the connected device. The key is
// opaque and not validated.
func (s *Service) SetNetworkKey(key string) {
	s.setField("network key", trenes.CharNetworkKey, trenes.EncodeNetworkKey(key), func(rec *trenes.Record) {
		rec.NetworkKey = key
	})
}

// setField issues one characteristic write for the connected device. The
// in-memory record changes only after the transport confirms the write;
// without a connected peripheral the intent is a silent no-op.
func (s *Service) setField(name, charUUID string, data []byte, apply func(*trenes.Record)) {
	go func() {
		s.mu.Lock()
		address := s.connected
		s.mu.Unlock()
		if address == "" {
			s.log.Warn("[CONTROL] Write dropped, no connected peripheral", "field", name)
			return
		}

		if err := s.tr.Write(trenes.ServiceTrain, charUUID, data, true); err != nil {
			s.log.Error("[CONTROL] Write failed", "field", name, "address", address, "err", err)
			return
		}

		rec, ok := s.dir.Get(address)
		if !ok {
			return
		}
		apply(&rec)
		if rec.Bonded {
			s.dir.UpdateBonded(rec)
		} else {
			s.dir.UpsertUnbonded(rec)
		}
	}()
}

// Shutdown stops scanning and tears down any live session.
func (s *Service) Shutdown() {
	s.StopScanning()
	s.retireSubscription()
	if err := s.tr.Disconnect(); err != nil {
		s.log.Warn("[CONTROL] Disconnect on shutdown failed", "err", err)
	}
	s.clearSession()
}

func (s *Service) retireSubscription() {
	s.mu.Lock()
	notifying := s.notifying
	s.notifying = false
	s.mu.Unlock()

	if !notifying {
		return
	}
	if err := s.tr.Unsubscribe(trenes.ServiceTrain, trenes.CharSpeed); err != nil {
		s.log.Warn("[CONTROL] Unsubscribe failed", "err", err)
	}
}

// ConnectedAddress reports the address of the train with a live session, or
// the empty string when no train is connected.
func (s *Service) ConnectedAddress() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Service) setSession(address string, notifying bool) {
	s.mu.Lock()
	s.connected = address
	s.notifying = notifying
	s.mu.Unlock()
}

func (s *Service) clearSession() {
	s.mu.Lock()
	s.connected = ""
	s.notifying = false
	s.mu.Unlock()
}
