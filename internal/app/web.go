// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/gaze_computer/internal/config"
	"github.com/relabs-tech/gaze_computer/internal/monitoring"
	"github.com/relabs-tech/gaze_computer/internal/orientation"
	"github.com/relabs-tech/gaze_computer/internal/triangulation"
)

// RunWeb serves the latest orientation and triangle over HTTP and streams
// updates to websocket clients.
func RunWeb() error {
	cfg := config.Get()
	if cfg == nil {
		return errNoConfig
	}

	hub := NewHub()
	state := newWebState(hub)

	client, err := connectMQTT(cfg.MQTT, "web",
		subscription{cfg.Topics.Orientation, state.handler(msgOrientation)},
		subscription{cfg.Topics.Triangle, state.handler(msgTriangle)},
	)
	if err != nil {
		return err
	}
	defer disconnect(client)

	srv := &http.Server{
		Addr:              cfg.Web.Addr,
		Handler:           newWebHandler(state, hub, cfg.Web.StaticDir),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		monitoring.Logf("[web] listening on %s", cfg.Web.Addr)
		errCh <- srv.ListenAndServe()
	}()

	ctx, stop := signalContext()
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	monitoring.Logf("[web] stopped")
	return nil
}

// webState keeps the latest payload per message type.
type webState struct {
	mu     sync.RWMutex
	latest map[string][]byte
	hub    *Hub
}

func newWebState(hub *Hub) *webState {
	return &webState{latest: make(map[string][]byte), hub: hub}
}

// update validates payload for kind, stores it and broadcasts it.
func (s *webState) update(kind string, payload []byte) error {
	var v interface{}
	switch kind {
	case msgOrientation:
		v = &orientation.Pose{}
	case msgTriangle:
		v = &triangulation.Result{}
	default:
		return fmt.Errorf("unknown message type %q", kind)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%s payload: %w", kind, err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.latest[kind] = data
	s.mu.Unlock()

	if s.hub != nil {
		s.hub.Broadcast(kind, data)
	}
	return nil
}

func (s *webState) get(kind string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.latest[kind]
	return data, ok
}

func (s *webState) handler(kind string) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		if err := s.update(kind, msg.Payload()); err != nil {
			monitoring.Logf("[web] %s: %v", msg.Topic(), err)
		}
	}
}

func (s *webState) serveLatest(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, ok := s.get(kind)
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(data); err != nil {
			monitoring.Logf("[web] write %s: %v", kind, err)
		}
	}
}

func newWebHandler(state *webState, hub *Hub, staticDir string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/orientation", state.serveLatest(msgOrientation))
	mux.HandleFunc("GET /api/triangle", state.serveLatest(msgTriangle))
	mux.Handle("GET /ws", hub)
	mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	return mux
}
