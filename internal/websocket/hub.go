// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package websocket

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/photarium/internal/config"
	"github.com/tomtom215/photarium/internal/events"
	"github.com/tomtom215/photarium/internal/logging"
	"github.com/tomtom215/photarium/internal/models"
)

// Message types pushed to clients.
const (
	MessageIndexProgress = "index_progress"
	MessageScanCompleted = "scan_completed"
	MessageThumbStatus   = "thumb_status"
	MessagePong          = "pong"
)

// broadcastBuffer bounds how many undelivered messages the hub queues
// before it starts dropping. Progress events are snapshots, so a dropped
// frame is superseded by the next one.
const broadcastBuffer = 256

// Message is one JSON frame sent to a client.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// ProgressPayload is the Data of index_progress and scan_completed frames.
type ProgressPayload struct {
	RootID    int64     `json:"root_id"`
	State     string    `json:"state"`
	Processed int       `json:"processed"`
	Total     int       `json:"total"`
	Errors    int       `json:"errors"`
	Timestamp time.Time `json:"timestamp"`
}

// ThumbPayload is the Data of thumb_status frames.
type ThumbPayload struct {
	PhotoID   int64     `json:"photo_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub owns the set of connected clients and fans messages out to them.
// Register and Unregister are serviced by Run; handlers push accepted
// connections onto Register after the upgrade succeeds.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client

	mu       sync.RWMutex
	bus      *events.Bus
	cfg      config.WebSocketConfig
	done     chan struct{}
	doneOnce sync.Once
}

// NewHub creates a hub that forwards events from bus to connected
// clients. bus may be nil, in which case only explicit BroadcastJSON
// calls produce traffic (used by tests).
func NewHub(bus *events.Bus, cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, broadcastBuffer),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		bus:        bus,
		cfg:        cfg,
		done:       make(chan struct{}),
	}
}

// Run services registration, unregistration, and broadcasts until ctx is
// cancelled, then closes every client. Lifecycle events take priority
// over broadcasts so a burst of progress frames cannot starve a
// disconnecting client.
func (h *Hub) Run(ctx context.Context) error {
	defer h.doneOnce.Do(func() { close(h.done) })

	if h.bus != nil {
		progress, err := h.bus.SubscribeProgress(ctx)
		if err != nil {
			return fmt.Errorf("websocket: subscribe progress: %w", err)
		}
		thumbs, err := h.bus.SubscribeThumbs(ctx)
		if err != nil {
			return fmt.Errorf("websocket: subscribe thumbs: %w", err)
		}
		go h.forwardProgress(progress)
		go h.forwardThumbs(thumbs)
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.closeAllClients()
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// BroadcastJSON queues a frame for every connected client. When the
// queue is full the frame is dropped; progress snapshots are refreshed
// by later events, so clients recover on their own.
func (h *Hub) BroadcastJSON(messageType string, data interface{}) {
	select {
	case h.broadcast <- Message{Type: messageType, Data: data}:
	default:
		logging.Warn().
			Str("type", messageType).
			Msg("websocket broadcast queue full, dropping frame")
	}
}

// ClientCount returns the number of currently registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) forwardProgress(ch <-chan *events.ProgressEvent) {
	for ev := range ch {
		msgType := MessageIndexProgress
		if ev.State == string(models.RootStateIdle) {
			msgType = MessageScanCompleted
		}
		h.BroadcastJSON(msgType, ProgressPayload{
			RootID:    ev.RootID,
			State:     ev.State,
			Processed: ev.Processed,
			Total:     ev.Total,
			Errors:    ev.Errors,
			Timestamp: ev.Timestamp,
		})
	}
}

func (h *Hub) forwardThumbs(ch <-chan *events.ThumbEvent) {
	for ev := range ch {
		h.BroadcastJSON(MessageThumbStatus, ThumbPayload{
			PhotoID:   ev.PhotoID,
			Status:    ev.Status,
			Timestamp: ev.Timestamp,
		})
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.cfg.MaxConnections > 0 && len(h.clients) >= h.cfg.MaxConnections {
		h.mu.Unlock()
		logging.Warn().
			Int("max_connections", h.cfg.MaxConnections).
			Msg("websocket connection limit reached, rejecting client")
		close(c.send)
		return
	}
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()

	logging.Debug().
		Uint64("client_id", c.id).
		Int("clients", count).
		Msg("websocket client registered")
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	logging.Debug().
		Uint64("client_id", c.id).
		Int("clients", count).
		Msg("websocket client unregistered")
}

// deliver sends msg to every client in ascending id order. Ordering
// keeps disconnect behavior reproducible when several buffers fill in
// the same pass.
func (h *Hub) deliver(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ordered := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].id < ordered[j].id })

	for _, c := range ordered {
		select {
		case c.send <- msg:
		default:
			delete(h.clients, c)
			close(c.send)
			logging.Warn().
				Uint64("client_id", c.id).
				Msg("websocket client too slow, dropping connection")
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	ordered := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].id < ordered[j].id })

	for _, c := range ordered {
		delete(h.clients, c)
		close(c.send)
	}

	if len(ordered) > 0 {
		logging.Info().
			Int("clients", len(ordered)).
			Msg("websocket hub shut down, closed all clients")
	}
}
