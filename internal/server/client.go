// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sempijja/chat-backend/internal/protocol"
)

// Client is one live WebSocket connection. It implements relay.Session: the
// relay engine hands it outbound events through Send, and its read pump feeds
// inbound frames to the engine.
type Client struct {
	id          string
	conn        *websocket.Conn
	send        chan []byte
	hub         *Hub
	addr        string
	cfg         *Config
	log         *slog.Logger
	rateLimiter *rateLimiter

	mu       sync.Mutex
	closed   bool
	evicting bool
}

// NewClient creates a Client for conn owned by hub. The send queue holds
// cfg.SendBufferSize frames.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	cfg := hub.cfg
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	id := uuid.NewString()
	return &Client{
		id:          id,
		conn:        conn,
		send:        make(chan []byte, cfg.SendBufferSize),
		hub:         hub,
		addr:        addr,
		cfg:         cfg,
		log:         hub.log.With("session_id", id, "remote_addr", addr),
		rateLimiter: newRateLimiter(cfg.RateLimit),
	}
}

// ID returns the session identifier assigned at connect time.
func (c *Client) ID() string {
	return c.id
}

// Send queues an encoded outbound event for the write pump. It never blocks:
// once the client is closed the event is discarded, and a full queue evicts
// the client.
func (c *Client) Send(ev protocol.Outbound) {
	c.enqueue(ev.Frame)
}

func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		if !c.evicting {
			c.evicting = true
			c.log.Warn("Send buffer full, disconnecting slow client", "capacity", cap(c.send))
			go c.hub.Unregister(c, "send buffer full")
		}
		return false
	}
}

// close stops delivery to the client and lets the write pump finish.
// It is safe to call more than once.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Closed reports whether the client has been torn down.
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// GetSendChan returns the client's send channel for reading outgoing frames.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
		c.log.Warn("Error setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
			c.log.Warn("Error setting read deadline in pong handler", "error", err)
		}
		return nil
	})
}

// disconnectReason maps a read error to the reason reported when the
// session is torn down.
func (c *Client) disconnectReason(err error) string {
	// Check for oversize frames
	if errors.Is(err, websocket.ErrReadLimit) {
		c.log.Warn("Message exceeded maximum size", "limit", c.cfg.MaxMessageSize)
		return "message too big"
	}

	// Check for expected close scenarios
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		c.log.Debug("Client closed the connection", "error", err)
		return "client disconnect"
	}

	// Check for network errors
	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		c.log.Debug("Connection closed", "error", err)
		return "transport close"
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		c.log.Info("Client stopped answering pings", "error", err)
		return "ping timeout"
	}

	c.log.Warn("WebSocket read error", "error", err)
	return "transport error"
}

// checkRateLimit verifies if the client has exceeded rate limits
// and returns true if the frame should be processed
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.log.Warn("Rate limit exceeded, discarding event",
			"burst", c.rateLimiter.cfg.Burst,
			"interval", c.rateLimiter.cfg.RefillInterval)
		return false
	}
	return true
}

func (c *Client) readPump() {
	reason := "transport close"
	defer func() {
		c.hub.Unregister(c, reason)
		c.closeConnection()
	}()

	c.setupReadConnection()

	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			reason = c.disconnectReason(err)
			return
		}

		if messageType != websocket.TextMessage {
			c.log.Debug("Ignoring non-text frame", "type", messageType)
			continue
		}

		if c.Closed() {
			reason = "session closed"
			return
		}

		if !c.checkRateLimit() {
			continue
		}

		c.hub.engine.HandleFrame(c, raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error closing connection", "error", err)
		}
	}
}

// handleMessage processes outgoing frames and returns false if the connection should be closed
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		c.log.Warn("Error setting write deadline", "error", err)
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	if !c.writeTextMessage(message) {
		return false
	}

	return c.writeQueuedMessages()
}

// writeCloseMessage sends a close frame to the client
func (c *Client) writeCloseMessage() bool {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error writing close message", "error", err)
		}
	}
	return false
}

// writeTextMessage writes one event as its own text frame.
func (c *Client) writeTextMessage(message []byte) bool {
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error writing message", "error", err)
		}
		return false
	}
	return true
}

// writeQueuedMessages drains whatever is already queued, one frame per event.
func (c *Client) writeQueuedMessages() bool {
	n := len(c.send)
	for i := 0; i < n; i++ {
		message, ok := <-c.send
		if !ok {
			return c.writeCloseMessage()
		}
		if !c.writeTextMessage(message) {
			return false
		}
	}
	return true
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		c.log.Warn("Error setting write deadline for ping", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Debug("Error writing ping message", "error", err)
		return false
	}
	return true
}
