// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/luxfi/samizdat/pkg/log"
	"github.com/luxfi/samizdat/pkg/metric"
	"github.com/luxfi/samizdat/pkg/settlement"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
	sendBuffer   = 256
	maxFrameSize = 4096
)

// SubscribeMessage narrows a feed connection to the listed event types.
// An empty list restores the full feed.
type SubscribeMessage struct {
	Type   string   `json:"type"`
	Events []string `json:"events"`
}

// Hub fans engine events out to websocket subscribers. It implements
// settlement.Emitter. Slow subscribers lose events rather than stall the
// engine.
type Hub struct {
	upgrader websocket.Upgrader
	log      log.Logger
	metrics  *metric.Metrics

	mu      sync.RWMutex
	clients map[*subscriber]struct{}
	closed  bool
}

type subscriber struct {
	conn *websocket.Conn
	send chan settlement.Event

	mu     sync.RWMutex
	filter map[string]struct{}
}

// NewHub creates an empty hub. metrics may be nil.
func NewHub(logger log.Logger, metrics *metric.Metrics) *Hub {
	if logger == nil {
		logger = log.NoOp()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:     logger,
		metrics: metrics,
		clients: make(map[*subscriber]struct{}),
	}
}

// Emit queues evt for every subscriber that wants it.
func (h *Hub) Emit(evt settlement.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.clients {
		if !sub.wants(evt.Type) {
			continue
		}
		select {
		case sub.send <- evt:
		default:
			// Buffer full, drop event
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams events until the peer leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", log.Error(err))
		return
	}
	sub := &subscriber{
		conn: conn,
		send: make(chan settlement.Event, sendBuffer),
	}
	if !h.register(sub) {
		_ = conn.Close()
		return
	}
	h.log.Debug("feed subscriber connected", log.String("remote", r.RemoteAddr))

	go h.writePump(sub)
	h.readPump(sub)
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.clients {
		h.drop(sub)
	}
}

func (h *Hub) register(sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[sub] = struct{}{}
	if h.metrics != nil {
		h.metrics.FeedSubscribers.Inc()
	}
	return true
}

func (h *Hub) unregister(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(sub)
}

// drop requires h.mu held for writing.
func (h *Hub) drop(sub *subscriber) {
	if _, ok := h.clients[sub]; !ok {
		return
	}
	delete(h.clients, sub)
	close(sub.send)
	if h.metrics != nil {
		h.metrics.FeedSubscribers.Dec()
	}
}

func (h *Hub) readPump(sub *subscriber) {
	defer func() {
		h.unregister(sub)
		_ = sub.conn.Close()
	}()

	sub.conn.SetReadLimit(maxFrameSize)
	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var msg SubscribeMessage
		if err := sub.conn.ReadJSON(&msg); err != nil {
			h.log.Debug("feed subscriber disconnected", log.Error(err))
			return
		}
		if msg.Type == "subscribe" {
			sub.setFilter(msg.Events)
		}
	}
}

func (h *Hub) writePump(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *subscriber) wants(typ string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.filter) == 0 {
		return true
	}
	_, ok := s.filter[typ]
	return ok
}

func (s *subscriber) setFilter(types []string) {
	filter := make(map[string]struct{}, len(types))
	for _, t := range types {
		filter[t] = struct{}{}
	}
	s.mu.Lock()
	s.filter = filter
	s.mu.Unlock()
}
