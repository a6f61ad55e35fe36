// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Los Trencitos

package transport

import (
	"bytes"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/LOS-trencitos/trenctl/pkg/trenes"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastSim() *Sim {
	return NewSimulated(SimConfig{
		DiscoveryInterval: 5 * time.Millisecond,
		OpDelay:           time.Millisecond,
		NotifyInterval:    5 * time.Millisecond,
		FleetSize:         3,
		Seed:              1,
	}, testLogger())
}

func waitForDiscovery(t *testing.T, s *Sim) Discovery {
	t.Helper()

	found := make(chan Discovery, 16)
	if err := s.StartScan(func(d Discovery) { found <- d }); err != nil {
		t.Fatalf("StartScan failed: %v", err)
	}
	defer s.StopScan()

	select {
	case d := <-found:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("no discovery event within 2s")
		return Discovery{}
	}
}

func TestSim_ScanSynthesizesDiscoveries(t *testing.T) {
	s := fastSim()
	d := waitForDiscovery(t, s)

	if d.Address == "" || d.ShortName == "" {
		t.Errorf("incomplete discovery: %+v", d)
	}
	if d.RSSI >= 0 {
		t.Errorf("RSSI = %d, want negative dBm", d.RSSI)
	}
}

func TestSim_StopScanHaltsEvents(t *testing.T) {
	s := fastSim()

	var count int
	done := make(chan struct{}, 1)
	_ = s.StartScan(func(Discovery) {
		count++
		select {
		case done <- struct{}{}:
		default:
		}
	})
	<-done
	_ = s.StopScan()

	settled := count
	time.Sleep(50 * time.Millisecond)
	if count > settled+1 {
		t.Errorf("events kept arriving after StopScan: %d -> %d", settled, count)
	}
}

func TestSim_ConnectReadWrite(t *testing.T) {
	s := fastSim()
	d := waitForDiscovery(t, s)

	if err := s.Connect(d.Address); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	data, err := s.Read(trenes.ServiceTrain, trenes.CharDCCCode)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(data) != 4 {
		t.Errorf("DCC payload length = %d, want 4", len(data))
	}

	if err := s.Write(trenes.ServiceTrain, trenes.CharSpeed, trenes.EncodeSpeed(80), true); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := s.Read(trenes.ServiceTrain, trenes.CharSpeed)
	if err != nil {
		t.Fatalf("Read after write failed: %v", err)
	}
	if !bytes.Equal(got, []byte{80}) {
		t.Errorf("speed after write = % X, want 80", got)
	}
}

func TestSim_ConnectUnknownAddress(t *testing.T) {
	s := fastSim()
	if err := s.Connect("SIM:FF:FF"); err == nil {
		t.Error("expected error connecting to a never-discovered address")
	}
}

func TestSim_OperationsRequireConnection(t *testing.T) {
	s := fastSim()

	if _, err := s.Read(trenes.ServiceTrain, trenes.CharSpeed); err != ErrNotConnected {
		t.Errorf("Read error = %v, want ErrNotConnected", err)
	}
	if err := s.Write(trenes.ServiceTrain, trenes.CharSpeed, []byte{1}, false); err != ErrNotConnected {
		t.Errorf("Write error = %v, want ErrNotConnected", err)
	}
	if err := s.Subscribe(trenes.ServiceTrain, trenes.CharSpeed, func([]byte) {}); err != ErrNotConnected {
		t.Errorf("Subscribe error = %v, want ErrNotConnected", err)
	}
}

func TestSim_SubscribeDeliversNotifications(t *testing.T) {
	s := fastSim()
	d := waitForDiscovery(t, s)
	_ = s.StopScan()

	if err := s.Connect(d.Address); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	notes := make(chan []byte, 16)
	if err := s.Subscribe(trenes.ServiceTrain, trenes.CharSpeed, func(b []byte) { notes <- b }); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer s.Unsubscribe(trenes.ServiceTrain, trenes.CharSpeed)

	select {
	case b := <-notes:
		speed, err := trenes.DecodeSpeed(b)
		if err != nil {
			t.Fatalf("notification payload undecodable: %v", err)
		}
		if speed < trenes.MinSpeed || speed > trenes.MaxSpeed {
			t.Errorf("notified speed %d out of range", speed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no notification within 2s")
	}
}

func TestSim_ConnectRetiresPreviousSubscription(t *testing.T) {
	s := fastSim()

	first := waitForDiscovery(t, s)
	var second Discovery
	deadline := time.After(2 * time.Second)
	found := make(chan Discovery, 16)
	_ = s.StartScan(func(d Discovery) { found <- d })
	for second.Address == "" {
		select {
		case d := <-found:
			if d.Address != first.Address {
				second = d
			}
		case <-deadline:
			t.Fatal("second device never discovered")
		}
	}
	_ = s.StopScan()

	if err := s.Connect(first.Address); err != nil {
		t.Fatalf("Connect first failed: %v", err)
	}
	notes := make(chan []byte, 64)
	if err := s.Subscribe(trenes.ServiceTrain, trenes.CharSpeed, func(b []byte) { notes <- b }); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	// Connecting elsewhere implicitly ends the first session's stream.
	if err := s.Connect(second.Address); err != nil {
		t.Fatalf("Connect second failed: %v", err)
	}
	for len(notes) > 0 {
		<-notes
	}
	time.Sleep(30 * time.Millisecond)
	if len(notes) > 1 {
		t.Errorf("old subscription still delivering after reconnect: %d pending", len(notes))
	}
}

func TestNoop(t *testing.T) {
	var a Adapter = Noop{}

	if err := a.StartScan(func(Discovery) { t.Error("noop scan discovered something") }); err != nil {
		t.Errorf("StartScan = %v", err)
	}
	if err := a.Connect("X"); err != ErrUnavailable {
		t.Errorf("Connect = %v, want ErrUnavailable", err)
	}
	if _, err := a.Read(trenes.ServiceTrain, trenes.CharSpeed); err != ErrUnavailable {
		t.Errorf("Read = %v, want ErrUnavailable", err)
	}
	if err := a.Disconnect(); err != nil {
		t.Errorf("Disconnect = %v", err)
	}
}

func TestFactory_SimBackend(t *testing.T) {
	a := New(BackendSim, trenes.ServiceTrain, SimConfig{Seed: 1}, testLogger())
	if _, ok := a.(*Sim); !ok {
		t.Errorf("New(BackendSim) = %T, want *Sim", a)
	}
}
