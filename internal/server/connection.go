// Package server manages individual WebSocket connections, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = 54 * time.Second
)

// Identity carries the caller-supplied and server-generated identifiers for a
// connection. ID is unique per connection; UserID and DisplayName are
// client-supplied tags with no uniqueness guarantee.
type Identity struct {
	ID          string
	UserID      string
	DisplayName string
	RoomID      string
	Addr        string
}

// Connection represents one client's live session in a chat room. It owns the
// underlying WebSocket exclusively: only the connection's own pumps and its
// exactly-once shutdown path touch the socket. Other components interact with
// it through identity accessors and TrySend.
type Connection struct {
	id          string
	userID      string
	displayName string
	roomID      string
	addr        string

	conn       *websocket.Conn
	send       chan []byte
	registry   *Registry
	dispatcher *Dispatcher

	mu     sync.Mutex
	closed bool

	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig
}

// NewConnection creates a Connection for an upgraded WebSocket. The send
// channel is buffered so slow recipients never block a broadcasting sender;
// a recipient whose buffer fills up is dropped instead.
func NewConnection(conn *websocket.Conn, registry *Registry, dispatcher *Dispatcher, ident Identity) *Connection {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	limiter := newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval)

	return &Connection{
		id:             ident.ID,
		userID:         ident.UserID,
		displayName:    ident.DisplayName,
		roomID:         ident.RoomID,
		addr:           ident.Addr,
		conn:           conn,
		send:           make(chan []byte, cfg.SendBufferSize),
		registry:       registry,
		dispatcher:     dispatcher,
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    limiter,
		rateLimit:      cfg.RateLimit,
	}
}

// ID returns the server-generated unique identifier for this connection.
func (c *Connection) ID() string {
	return c.id
}

// UserID returns the client-supplied user identifier.
func (c *Connection) UserID() string {
	return c.userID
}

// DisplayName returns the client-supplied display name.
func (c *Connection) DisplayName() string {
	return c.displayName
}

// RoomID returns the room this connection belongs to for its lifetime.
func (c *Connection) RoomID() string {
	return c.roomID
}

// TrySend queues a payload for delivery without blocking. It returns false
// when the connection is closed or its send buffer is full; the caller
// decides whether that warrants dropping the connection.
func (c *Connection) TrySend(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// shutdown transitions the connection to its terminal closed state exactly
// once. Safe to call concurrently from the read pump teardown, the
// dispatcher's eviction path, and registry shutdown.
func (c *Connection) shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection %s from %s: %v", c.id, c.addr, err)
		}
	}
}

// isClosed reports whether the connection has completed its closed transition.
func (c *Connection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// teardown runs the closing sequence: close the socket, remove the membership
// entry, then announce the departure to the remaining room members. Invoked
// exactly once, as the read pump's deferred cleanup.
func (c *Connection) teardown() {
	c.shutdown()
	c.registry.Leave(c.roomID, c.id)
	c.dispatcher.Announce(c.roomID, AnnounceLeft, c.id, c.displayName)
	log.Printf("Connection %s (%s) left room %s", c.id, c.displayName, c.roomID)
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection.
func (c *Connection) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Error setting initial read deadline for %s: %v", c.addr, err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("Error setting read deadline in pong handler for %s: %v", c.addr, err)
		}
		return nil
	})
}

// handleReadError logs appropriate error messages based on the error type
// and returns true if the read loop should break.
func (c *Connection) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		log.Printf("Message from %s exceeded maximum size of %d bytes", c.addr, c.maxMessageSize)
		return true
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		log.Printf("Connection %s disconnected: %v", c.id, err)
		return true
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		log.Printf("Connection %s closed: %v", c.id, err)
		return true
	}

	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig) {
		log.Printf("Unexpected WebSocket error from %s: %v", c.addr, err)
		return true
	}

	log.Printf("WebSocket read error from %s: %v", c.addr, err)
	return true
}

// checkRateLimit verifies if the connection has exceeded rate limits
// and returns true if the message should be processed.
func (c *Connection) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		log.Printf("Rate limit exceeded for %s (%d messages per %s); discarding message", c.addr, c.rateLimit.Burst, c.rateLimit.RefillInterval)
		return false
	}
	return true
}

// readPump is the connection's receiving loop: it blocks awaiting the next
// inbound message and hands each one to the dispatcher for broadcast. Any
// transport error ends the loop and triggers the exactly-once teardown.
func (c *Connection) readPump() {
	defer c.teardown()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if c.handleReadError(err) {
				break
			}
			continue
		}

		if !c.checkRateLimit() {
			continue
		}

		c.dispatcher.Broadcast(c.roomID, c.id, c.displayName, string(raw))
	}
}

// writePump drains the send buffer to the peer, preserving per-recipient
// message order, and keeps the connection alive with periodic pings. It exits
// when the send channel is closed or a write fails; closing the socket on the
// way out unblocks the read pump so teardown runs.
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeSocket()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Printf("Error setting write deadline for %s: %v", c.addr, err)
				return
			}
			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
					log.Printf("Error writing close message to %s: %v", c.addr, err)
				}
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error writing message to %s: %v", c.addr, err)
				}
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Printf("Error setting write deadline for ping to %s: %v", c.addr, err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error writing ping message to %s: %v", c.addr, err)
				}
				return
			}
		}
	}
}

// closeSocket closes the underlying WebSocket without touching the send
// channel; the exactly-once channel close belongs to shutdown.
func (c *Connection) closeSocket() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		log.Printf("Error closing socket for %s: %v", c.addr, err)
	}
}
