// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Los Trencitos

// Package bridge exposes the roster and the control operations over a
// WebSocket endpoint so that external user interfaces can present the fleet
// without linking against the controller.
package bridge

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// client pairs a connection with the mutex serializing writes to it. The
// websocket package forbids concurrent writers on one connection, and
// broadcasts arrive from whichever goroutine mutated the roster.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(100 * time.Millisecond))
	return c.conn.WriteJSON(event)
}

// Hub tracks connected WebSocket clients and fans events out to them.
type Hub struct {
	clients map[*websocket.Conn]*client
	mu      sync.Mutex
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]*client),
	}
}

// AddClient registers a connection for broadcasts.
func (h *Hub) AddClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = &client{conn: conn}
}

// RemoveClient unregisters and closes a connection.
func (h *Hub) RemoveClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
}

// ClientCount reports the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Send delivers event to one registered connection, serialized with any
// concurrent broadcasts to it. Unregistered connections are ignored.
func (h *Hub) Send(conn *websocket.Conn, event Event) error {
	h.mu.Lock()
	cl, ok := h.clients[conn]
	h.mu.Unlock()
	if !ok {
		return nil
	}
	return cl.send(event)
}

// Broadcast sends event to every client. Clients that fail to accept the
// write within the deadline are dropped.
func (h *Hub) Broadcast(event Event) {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	var failed []*websocket.Conn
	var failedMu sync.Mutex

	for _, cl := range clients {
		wg.Add(1)
		go func(cl *client) {
			defer wg.Done()

			if err := cl.send(event); err != nil {
				failedMu.Lock()
				failed = append(failed, cl.conn)
				failedMu.Unlock()
			}
		}(cl)
	}
	wg.Wait()

	if len(failed) > 0 {
		h.mu.Lock()
		for _, conn := range failed {
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
		}
		h.mu.Unlock()
	}
}
