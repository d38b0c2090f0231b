// Package server coordinates client registration and connection cleanup for
// the relay via the Hub type.
package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sempijja/chat-backend/internal/relay"
)

// departure is an unregistration request together with the reason the
// session is going away.
type departure struct {
	client *Client
	reason string
}

// Hub owns the set of live clients. It starts their pumps on registration
// and, on unregistration, closes the client before removing the session from
// every conversation, so a frame still in flight cannot rejoin it.
type Hub struct {
	log    *slog.Logger
	cfg    *Config
	engine *relay.Engine

	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan departure
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub that routes client frames to engine.
func NewHub(log *slog.Logger, cfg *Config, engine *relay.Engine) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		log:        log,
		cfg:        cfg,
		engine:     engine,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan departure),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Register hands a new client to the hub, which then launches its pumps.
// It returns false once the hub is shutting down.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Unregister asks the hub to tear the client's session down. Unknown or
// already removed clients are ignored.
func (h *Hub) Unregister(client *Client, reason string) {
	select {
	case h.unregister <- departure{client: client, reason: reason}:
	case <-h.done:
	}
}

// ClientCount returns the number of live clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Run starts the hub's main event loop, handling client registration and
// unregistration. It returns after Shutdown has closed every client.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn("Received nil client registration; skipping")
				continue
			}
			h.add(client)

		case d := <-h.unregister:
			h.remove(d.client, d.reason)
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mutex.Lock()
	h.clients[client] = struct{}{}
	clientCount := len(h.clients)
	h.mutex.Unlock()

	client.log.Info("User connected", "clients", clientCount)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

func (h *Hub) remove(client *Client, reason string) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client)
	clientCount := len(h.clients)
	h.mutex.Unlock()

	client.close()
	h.engine.Disconnect(client, reason)
	h.log.Debug("Client unregistered", "session_id", client.ID(), "clients", clientCount)
}

// shutdownClients disconnects every live client and closes its connection.
func (h *Hub) shutdownClients() {
	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[*Client]struct{})
	h.mutex.Unlock()

	h.log.Info("Shutting down client connections", "clients", len(clients))

	for _, client := range clients {
		client.close()
		h.engine.Disconnect(client, "server shutting down")
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				client.log.Warn("Error closing client connection", "error", err)
			}
		}
	}
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("Initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("Hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
