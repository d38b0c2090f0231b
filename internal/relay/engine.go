package relay

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sempijja/chat-backend/internal/protocol"
)

// Engine handles inbound events for every session. It validates them, applies
// membership changes, and fans messages and statuses out to the other members
// of the target conversation. The sender never receives its own broadcast.
//
// Delivery is fire-and-forget: there are no acknowledgements, no retries and
// no error replies to the sender. A malformed event is logged and dropped.
type Engine struct {
	log     *slog.Logger
	members Membership
	now     func() time.Time

	// fanout orders broadcasts: a recipient snapshot and the enqueue to each
	// recipient happen under it, so every member of a conversation sees
	// broadcasts in the same order.
	fanout sync.Mutex
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the clock used for serverTimestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine builds an Engine on top of a membership store.
func NewEngine(log *slog.Logger, members Membership, opts ...Option) *Engine {
	e := &Engine{log: log, members: members, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleFrame decodes one raw client frame and dispatches it.
func (e *Engine) HandleFrame(s Session, raw []byte) {
	if s.Closed() {
		return
	}
	ev, err := protocol.DecodeFrame(raw)
	if err != nil {
		e.log.Warn("Dropping malformed event", "session_id", s.ID(), "error", err)
		return
	}
	e.Dispatch(s, ev)
}

// Dispatch runs the handler for a decoded event.
func (e *Engine) Dispatch(s Session, ev protocol.Inbound) {
	switch ev := ev.(type) {
	case protocol.JoinConversation:
		if !e.join(s, ev.ConversationID) {
			e.log.Debug("Ignoring join from closed session", "session_id", s.ID(), "conversation_id", ev.ConversationID)
			return
		}
		e.log.Debug("Joined conversation", "session_id", s.ID(), "conversation_id", ev.ConversationID)
	case protocol.LeaveConversation:
		e.members.Leave(ev.ConversationID, s)
		e.log.Debug("Left conversation", "session_id", s.ID(), "conversation_id", ev.ConversationID)
	case protocol.SendMessage:
		e.sendMessage(s, ev)
	case protocol.MessageRead:
		e.messageRead(s, ev)
	default:
		e.log.Warn("Dropping unsupported event", "session_id", s.ID(), "event", ev.EventName())
	}
}

// join adds s to the conversation unless s is already closed. It shares the
// fanout lock with Disconnect: a join either lands before the session's
// removal, or sees the session closed and does nothing.
func (e *Engine) join(s Session, conversationID string) bool {
	e.fanout.Lock()
	defer e.fanout.Unlock()

	if s.Closed() {
		return false
	}
	e.members.Join(conversationID, s)
	return true
}

func (e *Engine) sendMessage(s Session, ev protocol.SendMessage) {
	stamped := ev.Message.Stamped(e.now().UTC().Format(protocol.TimestampLayout))
	n := e.broadcast(s, ev.ConversationID, protocol.EventNewMessage, stamped)
	e.log.Debug("Relayed message",
		"session_id", s.ID(),
		"conversation_id", ev.ConversationID,
		"message_id", ev.Message.ID(),
		"recipients", n)
}

func (e *Engine) messageRead(s Session, ev protocol.MessageRead) {
	status := protocol.MessageStatus{MessageID: ev.MessageID, Status: protocol.StatusRead}
	n := e.broadcast(s, ev.ConversationID, protocol.EventMessageStatus, status)
	e.log.Debug("Relayed read status",
		"session_id", s.ID(),
		"conversation_id", ev.ConversationID,
		"message_id", ev.MessageID,
		"recipients", n)
}

// broadcast sends payload to every member of the conversation except sender
// and reports how many sessions it was enqueued for.
func (e *Engine) broadcast(sender Session, conversationID, event string, payload any) int {
	out, err := protocol.Encode(event, payload)
	if err != nil {
		e.log.Error("Dropping unencodable event", "session_id", sender.ID(), "conversation_id", conversationID, "error", err)
		return 0
	}

	e.fanout.Lock()
	defer e.fanout.Unlock()

	recipients := e.members.MembersExcluding(conversationID, sender)
	for _, r := range recipients {
		r.Send(out)
	}
	return len(recipients)
}

// Disconnect removes a session from every conversation. The caller closes the
// session first, so no later join can bring it back. The reason is
// informational only.
func (e *Engine) Disconnect(s Session, reason string) {
	// No broadcast is mid-delivery while the session leaves.
	e.fanout.Lock()
	e.members.RemoveEverywhere(s)
	e.fanout.Unlock()

	e.log.Info("User disconnected", "session_id", s.ID(), "reason", reason)
}
