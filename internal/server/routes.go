// Package server wires HTTP handlers and middleware into echo for the relay
// application via routing helpers.
package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// setupRoutes registers the middleware chain and all application routes:
// health check, WebSocket endpoint, stats and test page.
func (s *Server) setupRoutes() {
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			s.log.Debug("HTTP request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP)
			return nil
		},
	}))
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.origins.CORSOrigins(),
		AllowMethods: []string{http.MethodGet, http.MethodPost},
	}))

	s.echo.GET("/", HealthHandler)
	s.echo.GET("/ws", s.WebSocketHandler)
	s.echo.GET("/stats", s.StatsHandler)
	s.echo.GET("/test", TestPageHandler)
}
