// Package server implements the HTTP server functionality for the chat relay.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/sempijja/chat-backend/internal/relay"
)

// minHubShutdown is the least time the hub gets to close its clients.
const minHubShutdown = time.Second

// Server wires the relay engine, the hub and the HTTP routes together.
type Server struct {
	cfg      *Config
	log      *slog.Logger
	registry *relay.Registry
	engine   *relay.Engine
	hub      *Hub
	origins  *OriginPolicy
	upgrader websocket.Upgrader
	echo     *echo.Echo

	hubStarted atomic.Bool
}

// New builds a Server from cfg. Nothing listens until Start is called.
func New(cfg *Config, log *slog.Logger, opts ...relay.Option) *Server {
	registry := relay.NewRegistry()
	engine := relay.NewEngine(log, registry, opts...)
	origins := NewOriginPolicy(log, cfg.AllowedOrigins)

	s := &Server{
		cfg:      cfg,
		log:      log,
		registry: registry,
		engine:   engine,
		hub:      NewHub(log, cfg, engine),
		origins:  origins,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.CheckOrigin,
		},
		echo: newEcho(cfg),
	}
	s.setupRoutes()
	return s
}

// newEcho creates the echo instance with the server's security timeouts.
func newEcho(cfg *Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.Addr = cfg.Addr
	e.Server.ReadTimeout = 15 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.IdleTimeout = 60 * time.Second
	return e
}

// Handler exposes the routed handler, mainly for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Hub returns the server's hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Registry returns the conversation membership registry.
func (s *Server) Registry() *relay.Registry {
	return s.registry
}

// StartHub launches the hub loop. Calling it again has no effect.
func (s *Server) StartHub() {
	if s.hubStarted.CompareAndSwap(false, true) {
		go s.hub.Run()
	}
}

// Start runs the hub and serves HTTP until Shutdown. It returns
// http.ErrServerClosed after a graceful shutdown.
func (s *Server) Start() error {
	s.StartHub()
	s.log.Info("Server listening", "addr", s.cfg.Addr, "origins", s.origins.CORSOrigins())
	return s.echo.Start(s.cfg.Addr)
}

// Shutdown stops accepting HTTP requests, then disconnects every client.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")

	httpErr := s.echo.Shutdown(ctx)
	if httpErr != nil {
		s.log.Error("HTTP server shutdown failed", "error", httpErr)
	}

	var hubErr error
	if s.hubStarted.Load() {
		timeout := s.cfg.ShutdownTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		// The HTTP shutdown may have spent the whole budget.
		if timeout < minHubShutdown {
			timeout = minHubShutdown
		}
		hubErr = s.hub.Shutdown(timeout)
	}

	return errors.Join(httpErr, hubErr)
}
