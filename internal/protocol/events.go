// Package protocol defines the JSON event protocol spoken over the relay's
// WebSocket: the frame envelope, the inbound and outbound event names, and the
// typed inbound payloads with their structural validation.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Inbound event names, sent by clients.
const (
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventSendMessage       = "send_message"
	EventMessageRead       = "message_read"
)

// Outbound event names, sent by the relay.
const (
	EventNewMessage    = "new_message"
	EventMessageStatus = "message_status"
)

// ServerTimestampField is the key the relay stamps onto every relayed message.
const ServerTimestampField = "serverTimestamp"

// TimestampLayout is the ISO-8601 UTC layout used for serverTimestamp.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Frame is the envelope of every WebSocket text frame in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutboundFrame is the envelope written to clients.
type OutboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Outbound is an event ready for delivery. Frame is the encoded envelope,
// shared by every recipient of a broadcast.
type Outbound struct {
	Event string
	Data  any
	Frame []byte
}

// Encode builds an Outbound, encoding the envelope once.
func Encode(event string, data any) (Outbound, error) {
	frame, err := json.Marshal(OutboundFrame{Event: event, Data: data})
	if err != nil {
		return Outbound{}, fmt.Errorf("encode %s: %w", event, err)
	}
	return Outbound{Event: event, Data: data, Frame: frame}, nil
}

// Inbound is one decoded client event. The set of implementations is closed
// to this package.
type Inbound interface {
	EventName() string
	inbound()
}

// JoinConversation asks to add the sending session to a conversation.
type JoinConversation struct {
	ConversationID string `json:"conversationId" validate:"required"`
}

// LeaveConversation asks to remove the sending session from a conversation.
type LeaveConversation struct {
	ConversationID string `json:"conversationId" validate:"required"`
}

// SendMessage relays a message to the other members of a conversation.
// Message carries the client object verbatim, unknown fields included.
type SendMessage struct {
	ConversationID string  `json:"conversationId" validate:"required"`
	Message        Message `json:"message"`
}

// MessageRead reports that the sender has read a message.
type MessageRead struct {
	ConversationID string `json:"conversationId" validate:"required"`
	MessageID      string `json:"messageId" validate:"required"`
}

func (JoinConversation) EventName() string  { return EventJoinConversation }
func (LeaveConversation) EventName() string { return EventLeaveConversation }
func (SendMessage) EventName() string       { return EventSendMessage }
func (MessageRead) EventName() string       { return EventMessageRead }

func (JoinConversation) inbound()  {}
func (LeaveConversation) inbound() {}
func (SendMessage) inbound()       {}
func (MessageRead) inbound()       {}

// Message is a chat message as sent by a client. Only "id" and "text" are
// interpreted; everything else is passed through untouched.
type Message map[string]any

// ID returns the message id, or "" when absent or not a string.
func (m Message) ID() string {
	id, _ := m["id"].(string)
	return id
}

// Text returns the message text, or "" when absent or not a string.
func (m Message) Text() string {
	text, _ := m["text"].(string)
	return text
}

// Stamped returns a copy of m with serverTimestamp set to ts. A client
// supplied serverTimestamp is overwritten.
func (m Message) Stamped(ts string) Message {
	out := make(Message, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[ServerTimestampField] = ts
	return out
}

// Status is a message delivery status. Only StatusRead is emitted today.
type Status string

// StatusRead marks a message as read by a recipient.
const StatusRead Status = "read"

// MessageStatus is the payload of a message_status event.
type MessageStatus struct {
	MessageID string `json:"messageId"`
	Status    Status `json:"status"`
}
