// Photarium - Photo Library Indexing and Map Clustering
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/photarium

package websocket

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/photarium/internal/logging"
)

const (
	// maxMessageSize caps inbound frames. Clients only ever send pings,
	// so anything near this limit is misbehaving.
	maxMessageSize = 512 * 1024

	// sendBuffer is the per-client outbound queue. A client that falls
	// this far behind is dropped by the hub.
	sendBuffer = 256

	defaultWriteWait    = 10 * time.Second
	defaultPingInterval = 30 * time.Second
)

var clientIDCounter atomic.Uint64

// Client is one websocket connection managed by the hub. The write pump
// owns the connection for writes, the read pump for reads; neither path
// touches the other's deadline.
type Client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn
	send chan Message

	writeWait    time.Duration
	pingInterval time.Duration
}

// NewClient wraps an upgraded connection. The caller must register the
// client with the hub before calling Start.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	writeWait := hub.cfg.WriteTimeout
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}
	pingInterval := hub.cfg.PingInterval
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	return &Client{
		id:           clientIDCounter.Add(1),
		hub:          hub,
		conn:         conn,
		send:         make(chan Message, sendBuffer),
		writeWait:    writeWait,
		pingInterval: pingInterval,
	}
}

// Start launches the read and write pumps. It returns immediately.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// pongWait must exceed pingInterval so one round trip fits inside the
// read deadline.
func (c *Client) pongWait() time.Duration {
	return c.pingInterval * 10 / 9
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.Unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	wait := c.pongWait()
	_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Debug().
					Err(err).
					Uint64("client_id", c.id).
					Msg("websocket read failed")
			}
			return
		}
		if msg.Type == "ping" {
			select {
			case c.send <- Message{Type: MessagePong}:
			default:
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				logging.Debug().
					Err(err).
					Uint64("client_id", c.id).
					Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
