// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Los Trencitos

package bridge

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LOS-trencitos/trenctl/pkg/control"
	"github.com/LOS-trencitos/trenctl/pkg/roster"
	"github.com/LOS-trencitos/trenctl/pkg/transport"
	"github.com/LOS-trencitos/trenctl/pkg/trenes"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) (*Server, *control.Service, *httptest.Server) {
	t.Helper()
	log := testLogger()
	sim := transport.NewSimulated(transport.SimConfig{
		DiscoveryInterval: 5 * time.Millisecond,
		OpDelay:           time.Millisecond,
		NotifyInterval:    5 * time.Millisecond,
		FleetSize:         3,
		Seed:              1,
	}, log)
	svc := control.New(sim, roster.New(), log)
	srv := NewServer(svc, "/ws", log)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		svc.Shutdown()
	})
	return srv, svc, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func TestServer_InitialSnapshotOnConnect(t *testing.T) {
	_, svc, ts := newTestServer(t)
	svc.Roster().UpsertUnbonded(trenes.NewRecord("AA:01", "Tren01"))

	conn := dial(t, ts)
	ev := readEvent(t, conn)
	if ev.Type != "snapshot" {
		t.Fatalf("event type = %q, want snapshot", ev.Type)
	}
	if len(ev.Unbonded) != 1 || ev.Unbonded[0].Address != "AA:01" {
		t.Fatalf("unbonded = %+v, want the pre-seeded device", ev.Unbonded)
	}
}

func TestServer_ScanIntentProducesSnapshots(t *testing.T) {
	_, _, ts := newTestServer(t)
	conn := dial(t, ts)
	readEvent(t, conn) // initial empty snapshot

	intent := Intent{Action: "scan_start"}
	if err := conn.WriteJSON(intent); err != nil {
		t.Fatalf("write intent: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		ev := readEvent(t, conn)
		if len(ev.Unbonded) > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no discovery snapshot before deadline")
		}
	}
}

func TestServer_SetIntentClampsAndApplies(t *testing.T) {
	_, svc, ts := newTestServer(t)
	conn := dial(t, ts)
	readEvent(t, conn)

	// Drive the simulator until a device exists, then bond and connect it
	// through intents only.
	svc.StartScanning()
	var addr string
	deadline := time.Now().Add(2 * time.Second)
	for addr == "" {
		ev := readEvent(t, conn)
		if len(ev.Unbonded) > 0 {
			addr = ev.Unbonded[0].Address
		}
		if time.Now().After(deadline) {
			t.Fatal("no device discovered before deadline")
		}
	}
	svc.StopScanning()

	if err := conn.WriteJSON(Intent{Action: "bond", Address: addr}); err != nil {
		t.Fatalf("write bond intent: %v", err)
	}
	waitForEvent(t, conn, func(ev Event) bool {
		return len(ev.Bonded) == 1 && ev.Bonded[0].Address == addr
	}, "device bonded")

	if err := conn.WriteJSON(Intent{Action: "connect", Address: addr}); err != nil {
		t.Fatalf("write connect intent: %v", err)
	}
	waitForEvent(t, conn, func(ev Event) bool {
		return ev.Selected != nil && ev.Selected.Address == addr
	}, "device selected")

	if err := conn.WriteJSON(Intent{Action: "set", Field: "speed", Value: "500"}); err != nil {
		t.Fatalf("write set intent: %v", err)
	}
	waitForEvent(t, conn, func(ev Event) bool {
		return ev.Selected != nil && ev.Selected.Speed == trenes.MaxSpeed
	}, "speed clamped to maximum")
}

func waitForEvent(t *testing.T, conn *websocket.Conn, cond func(Event) bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		ev := readEvent(t, conn)
		if cond(ev) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
	}
}

func TestServer_UnknownIntentIsIgnored(t *testing.T) {
	_, svc, ts := newTestServer(t)
	conn := dial(t, ts)
	readEvent(t, conn)

	if err := conn.WriteJSON(Intent{Action: "reboot"}); err != nil {
		t.Fatalf("write intent: %v", err)
	}
	// The connection must survive an unknown intent.
	svc.Roster().UpsertUnbonded(trenes.NewRecord("AA:02", "Tren02"))
	ev := readEvent(t, conn)
	if len(ev.Unbonded) != 1 {
		t.Fatalf("unbonded = %+v, want one device", ev.Unbonded)
	}
}

func TestHub_ConcurrentBroadcastsToOneClient(t *testing.T) {
	hub := NewHub()
	upgrader := websocket.Upgrader{}
	serverConn := make(chan *websocket.Conn, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		hub.AddClient(conn)
		serverConn <- conn
	}))
	t.Cleanup(ts.Close)

	conn := dial(t, ts)
	registered := <-serverConn

	// Drain frames so the server-side writes never stall on a full buffer.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Roster mutations broadcast from whichever goroutine performed them, so
	// several broadcasts and a direct send can hit the same connection at
	// once. Writes to one connection must serialize.
	const writers = 4
	const rounds = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				hub.Broadcast(Event{Type: "snapshot"})
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < rounds; j++ {
			hub.Send(registered, Event{Type: "snapshot"})
		}
	}()
	wg.Wait()

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("client count after concurrent broadcasts = %d, want 1", got)
	}

	conn.Close()
	<-done
}

func TestHub_BroadcastDropsFailedClients(t *testing.T) {
	hub := NewHub()
	upgrader := websocket.Upgrader{}

	var mu sync.Mutex
	var serverConns []*websocket.Conn
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		hub.AddClient(conn)
		mu.Lock()
		serverConns = append(serverConns, conn)
		mu.Unlock()
	}))
	t.Cleanup(ts.Close)

	first := dial(t, ts)
	second := dial(t, ts)

	hub.Broadcast(Event{Type: "snapshot"})
	readEvent(t, first)
	readEvent(t, second)
	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("client count = %d, want 2", got)
	}

	// Kill the first server-side connection; the next broadcast must prune it.
	mu.Lock()
	serverConns[0].Close()
	mu.Unlock()

	hub.Broadcast(Event{Type: "snapshot"})
	readEvent(t, second)
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("client count after prune = %d, want 1", got)
	}
}
