// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/gaze_computer/internal/monitoring"
)

// Message types sent to websocket clients.
const (
	msgOrientation = "orientation"
	msgTriangle    = "triangle"
)

// wsMessage is the envelope for every websocket frame.
type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	subscriberBuffer = 8
	writeWait        = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// Hub fans messages out to websocket subscribers. It keeps the latest
// message of each type so new subscribers start with current values.
// Slow subscribers miss messages instead of blocking the broadcaster.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]chan []byte
	nextID int
	last   map[string][]byte
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[int]chan []byte),
		last: make(map[string][]byte),
	}
}

// Broadcast sends data, already JSON encoded, to every subscriber.
func (h *Hub) Broadcast(kind string, data []byte) {
	frame, err := json.Marshal(wsMessage{Type: kind, Data: data})
	if err != nil {
		monitoring.Logf("[web] encode %s frame: %v", kind, err)
		return
	}

	// Sends happen under the lock so Unsubscribe cannot close a channel mid-send.
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last[kind] = frame
	for _, ch := range h.subs {
		select {
		case ch <- frame:
		default:
		}
	}
}

// Subscribe registers a new listener and queues the latest frames.
func (h *Hub) Subscribe() (int, <-chan []byte) {
	ch := make(chan []byte, subscriberBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	for _, kind := range []string{msgOrientation, msgTriangle} {
		if frame, ok := h.last[kind]; ok {
			ch <- frame
		}
	}
	return id, ch
}

func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Subscribers returns the current listener count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// ServeHTTP upgrades the request and streams frames until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("[web] websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	id, frames := h.Subscribe()
	defer h.Unsubscribe(id)

	// The read loop only notices the client closing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				monitoring.Logf("[web] websocket write error: %v", err)
				return
			}
		}
	}
}
