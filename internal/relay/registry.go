package relay

import (
	"sync"

	"github.com/samber/lo"
)

// Membership is the conversation membership store used by the Engine.
type Membership interface {
	Join(conversationID string, s Session)
	Leave(conversationID string, s Session)
	MembersExcluding(conversationID string, s Session) []Session
	RemoveEverywhere(s Session)
}

type set map[string]struct{}

// Registry maps conversation ids to the sessions joined to them. A
// conversation exists exactly while it has at least one member; empty entries
// are deleted in both indexes.
//
// Registry is safe for concurrent use. One RWMutex guards both indexes, so a
// MembersExcluding snapshot never observes a half-applied Join or Leave.
type Registry struct {
	mu            sync.RWMutex
	conversations map[string]map[string]Session // conversation -> session id -> session
	joined        map[string]set                // session id -> conversations
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		conversations: make(map[string]map[string]Session),
		joined:        make(map[string]set),
	}
}

// Join adds s to the conversation, creating it if needed. Joining twice is a no-op.
func (r *Registry) Join(conversationID string, s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.conversations[conversationID]
	if !ok {
		members = make(map[string]Session)
		r.conversations[conversationID] = members
	}
	members[s.ID()] = s

	convs, ok := r.joined[s.ID()]
	if !ok {
		convs = make(set)
		r.joined[s.ID()] = convs
	}
	convs[conversationID] = struct{}{}
}

// Leave removes s from the conversation. Unknown conversations and
// non-members are ignored.
func (r *Registry) Leave(conversationID string, s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leaveLocked(conversationID, s.ID())
}

func (r *Registry) leaveLocked(conversationID, sessionID string) {
	if members, ok := r.conversations[conversationID]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(r.conversations, conversationID)
		}
	}
	if convs, ok := r.joined[sessionID]; ok {
		delete(convs, conversationID)
		if len(convs) == 0 {
			delete(r.joined, sessionID)
		}
	}
}

// MembersExcluding returns a snapshot of the conversation's members other
// than s. It returns nil for unknown conversations.
func (r *Registry) MembersExcluding(conversationID string, s Session) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.conversations[conversationID]
	if !ok {
		return nil
	}
	others := lo.OmitByKeys(members, []string{s.ID()})
	if len(others) == 0 {
		return nil
	}
	return lo.Values(others)
}

// RemoveEverywhere drops s from every conversation it joined. Safe to call for
// a session that never joined anything.
func (r *Registry) RemoveEverywhere(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := s.ID()
	for conversationID := range r.joined[id] {
		r.leaveLocked(conversationID, id)
	}
	delete(r.joined, id)
}

// ConversationsOf lists the conversations a session has joined.
func (r *Registry) ConversationsOf(sessionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.joined[sessionID])
}

// MemberCount returns the number of sessions joined to a conversation.
func (r *Registry) MemberCount(conversationID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conversations[conversationID])
}

// ConversationCount returns the number of non-empty conversations.
func (r *Registry) ConversationCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conversations)
}
