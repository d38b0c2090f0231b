// Package server implements the HTTP and WebSocket shell around the relay.
//
// The implementation is organized into specialized files for configuration,
// origin policy, rate limiting, hub management, clients, routing, and HTTP
// handlers. Business rules live in the relay package; this package only moves
// frames between sockets and the relay engine.
package server
