// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Los Trencitos

package transport

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/LOS-trencitos/trenctl/pkg/trenes"
)

// SimConfig tunes the simulated fleet.
type SimConfig struct {
	// DiscoveryInterval is the cadence of synthetic discovery events.
	DiscoveryInterval time.Duration
	// OpDelay is the fixed delay before every simulated transport call
	// completes. Simulated calls never fail.
	OpDelay time.Duration
	// NotifyInterval is the cadence of speed notifications while subscribed.
	NotifyInterval time.Duration
	// FleetSize caps how many distinct devices the simulator invents.
	FleetSize int
	// Seed seeds the generator; 0 means seed from the clock.
	Seed int64
}

func (c SimConfig) withDefaults() SimConfig {
	if c.DiscoveryInterval <= 0 {
		c.DiscoveryInterval = 2 * time.Second
	}
	if c.OpDelay <= 0 {
		c.OpDelay = 150 * time.Millisecond
	}
	if c.NotifyInterval <= 0 {
		c.NotifyInterval = time.Second
	}
	if c.FleetSize <= 0 {
		c.FleetSize = 6
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return c
}

// Sim is the simulated transport: a random fleet of trains, fixed delays,
// and operations that always succeed.
type Sim struct {
	log *slog.Logger
	cfg SimConfig

	mu        sync.Mutex
	rng       *rand.Rand
	devices   map[string]*simDevice
	order     []string // creation order, for picking re-advertisements
	connected string
	scanStop  chan struct{}
	notify    chan struct{} // closed to stop the active notifier
}

type simDevice struct {
	shortName string
	chars     map[string][]byte
}

// NewSimulated creates a simulated transport.
func NewSimulated(cfg SimConfig, log *slog.Logger) *Sim {
	cfg = cfg.withDefaults()
	return &Sim{
		log:     log,
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		devices: make(map[string]*simDevice),
	}
}

var simLongNames = []string{
	"Locomotora Roja",
	"Expreso del Norte",
	"La Flecha",
	"Cercanías 447",
	"Tranvía Azul",
	"El Correo",
}

func (s *Sim) inventDeviceLocked() (string, *simDevice) {
	n := len(s.devices) + 1
	addr := fmt.Sprintf("SIM:00:%02X", n)
	dev := &simDevice{
		shortName: fmt.Sprintf("Tren%02d", n),
		chars: map[string][]byte{
			trenes.CharLongName:     []byte(simLongNames[(n-1)%len(simLongNames)]),
			trenes.CharDCCCode:      trenes.EncodeDCCCode(1 + s.rng.Intn(trenes.MaxDCCCode)),
			trenes.CharSpeed:        trenes.EncodeSpeed(0),
			trenes.CharAcceleration: trenes.EncodeAcceleration(0),
			trenes.CharDirection:    trenes.EncodeDirection(trenes.DirectionStop),
			trenes.CharNetworkKey:   []byte{},
		},
	}
	s.devices[addr] = dev
	s.order = append(s.order, addr)
	return addr, dev
}

func (s *Sim) StartScan(onDiscover func(Discovery)) error {
	s.mu.Lock()
	if s.scanStop != nil {
		s.mu.Unlock()
		return nil
	}
	stop := make(chan struct{})
	s.scanStop = stop
	s.mu.Unlock()

	s.log.Info("[SIM] Scan started")

	go func() {
		ticker := time.NewTicker(s.cfg.DiscoveryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				var addr string
				var dev *simDevice
				if len(s.devices) < s.cfg.FleetSize {
					addr, dev = s.inventDeviceLocked()
				} else {
					addr = s.order[s.rng.Intn(len(s.order))]
					dev = s.devices[addr]
				}
				d := Discovery{
					Address:   addr,
					ShortName: dev.shortName,
					RSSI:      -40 - s.rng.Intn(50),
				}
				s.mu.Unlock()
				onDiscover(d)
			}
		}
	}()

	return nil
}

func (s *Sim) StopScan() error {
	s.mu.Lock()
	if s.scanStop != nil {
		close(s.scanStop)
		s.scanStop = nil
		s.log.Info("[SIM] Scan stopped")
	}
	s.mu.Unlock()
	return nil
}

func (s *Sim) Connect(address string) error {
	time.Sleep(s.cfg.OpDelay)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[address]; !ok {
		return fmt.Errorf("no peripheral handle for %s (not seen in scan)", address)
	}
	s.stopNotifierLocked()
	s.connected = address
	s.log.Info("[SIM] Connected", "address", address)
	return nil
}

func (s *Sim) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopNotifierLocked()
	s.connected = ""
	return nil
}

func (s *Sim) Read(serviceUUID, charUUID string) ([]byte, error) {
	time.Sleep(s.cfg.OpDelay)

	s.mu.Lock()
	defer s.mu.Unlock()
	dev, err := s.connectedLocked()
	if err != nil {
		return nil, err
	}
	val, ok := dev.chars[charUUID]
	if !ok {
		return nil, fmt.Errorf("characteristic %s not present on peripheral", charUUID)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (s *Sim) Write(serviceUUID, charUUID string, data []byte, withResponse bool) error {
	time.Sleep(s.cfg.OpDelay)

	s.mu.Lock()
	defer s.mu.Unlock()
	dev, err := s.connectedLocked()
	if err != nil {
		return err
	}
	val := make([]byte, len(data))
	copy(val, data)
	dev.chars[charUUID] = val
	return nil
}

func (s *Sim) Subscribe(serviceUUID, charUUID string, onData func([]byte)) error {
	s.mu.Lock()
	if _, err := s.connectedLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.stopNotifierLocked()
	stop := make(chan struct{})
	s.notify = stop
	address := s.connected
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(s.cfg.NotifyInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				dev, ok := s.devices[address]
				if !ok || s.connected != address {
					s.mu.Unlock()
					return
				}
				val := s.jitterLocked(dev, charUUID)
				s.mu.Unlock()
				onData(val)
			}
		}
	}()

	return nil
}

func (s *Sim) Unsubscribe(serviceUUID, charUUID string) error {
	s.mu.Lock()
	s.stopNotifierLocked()
	s.mu.Unlock()
	return nil
}

// jitterLocked nudges a one-byte characteristic value and returns a copy.
// Multi-byte characteristics are returned unchanged.
func (s *Sim) jitterLocked(dev *simDevice, charUUID string) []byte {
	val := dev.chars[charUUID]
	if len(val) == 1 {
		next := trenes.ClampSpeed(int(val[0]) + s.rng.Intn(9) - 4)
		dev.chars[charUUID] = []byte{byte(next)}
	}
	out := make([]byte, len(dev.chars[charUUID]))
	copy(out, dev.chars[charUUID])
	return out
}

func (s *Sim) connectedLocked() (*simDevice, error) {
	if s.connected == "" {
		return nil, ErrNotConnected
	}
	return s.devices[s.connected], nil
}

func (s *Sim) stopNotifierLocked() {
	if s.notify != nil {
		close(s.notify)
		s.notify = nil
	}
}
