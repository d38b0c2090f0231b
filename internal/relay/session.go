//go:generate go run go.uber.org/mock/mockgen -source=session.go -destination=../mocks/mock_session.go -package=mocks

// Package relay routes chat events between connected sessions. It owns the
// conversation membership registry and the event handlers that fan messages
// and read statuses out to the other members of a conversation.
package relay

import "github.com/sempijja/chat-backend/internal/protocol"

// Session is one connected client as seen by the relay.
type Session interface {
	// ID is unique for the lifetime of the connection and never reused.
	ID() string
	// Send enqueues an outbound event. It never blocks on the network and is a
	// no-op once the session is closed. Sends issued by one goroutine to the
	// same session are delivered in order.
	Send(ev protocol.Outbound)
	// Closed reports whether the session has been torn down. A closed session
	// never becomes open again.
	Closed() bool
}
