// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Los Trencitos

package bridge

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/LOS-trencitos/trenctl/pkg/control"
	"github.com/LOS-trencitos/trenctl/pkg/roster"
	"github.com/LOS-trencitos/trenctl/pkg/trenes"
)

// Event is the wire frame pushed to clients. Every roster mutation produces
// one snapshot event carrying the complete presentation state.
type Event struct {
	Type     string   `json:"type"`
	Unbonded []Device `json:"unbonded"`
	Bonded   []Device `json:"bonded"`
	Selected *Device  `json:"selected,omitempty"`
}

// Device is the wire form of a device record.
type Device struct {
	Address      string `json:"address"`
	ShortName    string `json:"short_name"`
	LongName     string `json:"long_name"`
	DCCCode      int    `json:"dcc_code"`
	Speed        int    `json:"speed"`
	Acceleration int    `json:"acceleration"`
	Direction    string `json:"direction"`
	Bonded       bool   `json:"bonded"`
}

// Intent is a client request frame. Value carries the field payload for set
// intents; numeric fields are sent as decimal strings.
type Intent struct {
	Action  string `json:"action"`
	Address string `json:"address,omitempty"`
	Field   string `json:"field,omitempty"`
	Value   string `json:"value,omitempty"`
}

func deviceFromRecord(rec trenes.Record) Device {
	return Device{
		Address:      rec.Address,
		ShortName:    rec.ShortName,
		LongName:     rec.LongName,
		DCCCode:      rec.DCCCode,
		Speed:        rec.Speed,
		Acceleration: rec.Acceleration,
		Direction:    string(rec.Direction),
		Bonded:       rec.Bonded,
	}
}

func eventFromSnapshot(snap roster.Snapshot) Event {
	ev := Event{
		Type:     "snapshot",
		Unbonded: make([]Device, 0, len(snap.Unbonded)),
		Bonded:   make([]Device, 0, len(snap.Bonded)),
	}
	for _, rec := range snap.Unbonded {
		ev.Unbonded = append(ev.Unbonded, deviceFromRecord(rec))
	}
	for _, rec := range snap.Bonded {
		ev.Bonded = append(ev.Bonded, deviceFromRecord(rec))
	}
	if snap.Selected != nil {
		dev := deviceFromRecord(*snap.Selected)
		ev.Selected = &dev
	}
	return ev
}

// Server serves the WebSocket bridge endpoint for one control service.
type Server struct {
	log      *slog.Logger
	svc      *control.Service
	hub      *Hub
	path     string
	upgrader websocket.Upgrader
}

// NewServer wires a bridge server to svc. Roster mutations are broadcast to
// all connected clients from the moment the server is constructed.
func NewServer(svc *control.Service, path string, log *slog.Logger) *Server {
	s := &Server{
		log:  log,
		svc:  svc,
		hub:  NewHub(),
		path: path,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	svc.Roster().Subscribe(func(snap roster.Snapshot) {
		s.hub.Broadcast(eventFromSnapshot(snap))
	})
	return s
}

// Hub exposes the client hub, mainly for tests.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP handler serving the bridge endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleWebSocket)
	return mux
}

// ListenAndServe blocks serving the bridge on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.log.Info("[BRIDGE] Listening", "addr", addr, "path", s.path)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("[BRIDGE] Upgrade failed", "error", err)
		return
	}
	s.hub.AddClient(conn)

	// New clients get the current state immediately rather than waiting for
	// the next mutation. The send goes through the hub so it serializes with
	// broadcasts already in flight.
	if err := s.hub.Send(conn, eventFromSnapshot(s.svc.Roster().Snapshot())); err != nil {
		s.hub.RemoveClient(conn)
		return
	}

	go s.readLoop(conn)
}

func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.hub.RemoveClient(conn)
	for {
		var intent Intent
		if err := conn.ReadJSON(&intent); err != nil {
			return
		}
		s.dispatch(intent)
	}
}

func (s *Server) dispatch(intent Intent) {
	switch intent.Action {
	case "scan_start":
		s.svc.StartScanning()
	case "scan_stop":
		s.svc.StopScanning()
	case "connect":
		s.svc.Connect(intent.Address)
	case "bond":
		s.svc.Bond(intent.Address)
	case "set":
		s.dispatchSet(intent)
	default:
		s.log.Warn("[BRIDGE] Unknown intent", "action", intent.Action)
	}
}

func (s *Server) dispatchSet(intent Intent) {
	switch intent.Field {
	case "speed":
		v, err := strconv.Atoi(intent.Value)
		if err != nil {
			s.log.Warn("[BRIDGE] Bad speed value", "value", intent.Value)
			return
		}
		s.svc.SetSpeed(v)
	case "acceleration":
		v, err := strconv.Atoi(intent.Value)
		if err != nil {
			s.log.Warn("[BRIDGE] Bad acceleration value", "value", intent.Value)
			return
		}
		s.svc.SetAcceleration(v)
	case "direction":
		s.svc.SetDirection(trenes.ParseDirection([]byte(intent.Value)))
	case "long_name":
		s.svc.SetLongName(intent.Value)
	case "network_key":
		s.svc.SetNetworkKey(intent.Value)
	default:
		s.log.Warn("[BRIDGE] Unknown field", "field", intent.Field)
	}
}
