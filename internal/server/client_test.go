package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"github.com/sempijja/chat-backend/internal/protocol"
	"github.com/sempijja/chat-backend/internal/relay"
)

func newTestHub(t *testing.T, mutate func(*Config)) (*Hub, *relay.Registry) {
	t.Helper()
	cfg := NewConfig()
	if mutate != nil {
		mutate(cfg)
	}
	log := logs.GetLoggerFromLevel(slog.LevelError)
	registry := relay.NewRegistry()
	return NewHub(log, cfg, relay.NewEngine(log, registry)), registry
}

func outbound(t *testing.T, event string, data any) protocol.Outbound {
	t.Helper()
	ev, err := protocol.Encode(event, data)
	require.NoError(t, err)
	return ev
}

// adopt registers client with hub without starting its pumps.
func adopt(hub *Hub, client *Client) {
	hub.mutex.Lock()
	hub.clients[client] = struct{}{}
	hub.mutex.Unlock()
}

func decodeFrame(t *testing.T, raw []byte) protocol.Frame {
	t.Helper()
	var f protocol.Frame
	require.NoError(t, json.Unmarshal(raw, &f))
	return f
}

func TestClient_ImplementsSession(t *testing.T) {
	hub, _ := newTestHub(t, nil)
	var s relay.Session = NewClient(nil, hub, "127.0.0.1:1234")

	require.NotEmpty(t, s.ID())
	require.NotEqual(t, s.ID(), NewClient(nil, hub, "127.0.0.1:1234").ID())
}

func TestClient_Send_KeepsOrderAndEnvelope(t *testing.T) {
	req := require.New(t)
	hub, _ := newTestHub(t, nil)
	client := NewClient(nil, hub, "127.0.0.1:1234")

	client.Send(outbound(t, protocol.EventNewMessage, protocol.Message{"id": "m1", "text": "one"}))
	client.Send(outbound(t, protocol.EventMessageStatus, protocol.MessageStatus{MessageID: "m1", Status: protocol.StatusRead}))
	client.Send(outbound(t, protocol.EventNewMessage, protocol.Message{"id": "m2", "text": "two"}))

	req.Len(client.GetSendChan(), 3)

	first := decodeFrame(t, <-client.GetSendChan())
	req.Equal(protocol.EventNewMessage, first.Event)
	req.JSONEq(`{"id":"m1","text":"one"}`, string(first.Data))

	second := decodeFrame(t, <-client.GetSendChan())
	req.Equal(protocol.EventMessageStatus, second.Event)
	req.JSONEq(`{"messageId":"m1","status":"read"}`, string(second.Data))

	third := decodeFrame(t, <-client.GetSendChan())
	req.JSONEq(`{"id":"m2","text":"two"}`, string(third.Data))
}

func TestClient_Send_AfterCloseIsNoop(t *testing.T) {
	hub, _ := newTestHub(t, nil)
	client := NewClient(nil, hub, "127.0.0.1:1234")

	client.close()
	client.close()

	require.NotPanics(t, func() {
		client.Send(outbound(t, protocol.EventNewMessage, protocol.Message{"id": "m1", "text": "late"}))
	})
	_, open := <-client.GetSendChan()
	require.False(t, open)
	require.True(t, client.Closed())
}

func TestClient_Send_FullQueueEvictsClient(t *testing.T) {
	req := require.New(t)
	hub, registry := newTestHub(t, func(cfg *Config) { cfg.SendBufferSize = 2 })
	go hub.Run()
	t.Cleanup(func() { _ = hub.Shutdown(time.Second) })

	// Given a registered client, without pumps, that is a member of c1
	client := NewClient(nil, hub, "127.0.0.1:1234")
	adopt(hub, client)
	registry.Join("c1", client)

	// When more events arrive than its queue holds
	for i := 0; i < 3; i++ {
		client.Send(outbound(t, protocol.EventNewMessage, protocol.Message{"id": "m", "text": "x"}))
	}

	// Then the client is dropped from the hub and from every conversation
	req.Eventually(client.Closed, time.Second, 10*time.Millisecond)
	req.Zero(hub.ClientCount())
	req.Zero(registry.MemberCount("c1"))
	req.Len(client.GetSendChan(), 2)
}

func TestClient_DisconnectReason(t *testing.T) {
	hub, _ := newTestHub(t, nil)
	client := NewClient(nil, hub, "127.0.0.1:1234")

	require.Equal(t, "message too big", client.disconnectReason(websocket.ErrReadLimit))
	require.Equal(t, "client disconnect", client.disconnectReason(&websocket.CloseError{Code: websocket.CloseNormalClosure}))
	require.Equal(t, "transport close", client.disconnectReason(io.EOF))
	require.Equal(t, "transport error", client.disconnectReason(errors.New("boom")))
}

func TestClient_EvictedClientCannotRejoin(t *testing.T) {
	req := require.New(t)
	hub, registry := newTestHub(t, func(cfg *Config) { cfg.SendBufferSize = 1 })
	go hub.Run()
	t.Cleanup(func() { _ = hub.Shutdown(time.Second) })

	// Given a client evicted for a full queue
	client := NewClient(nil, hub, "127.0.0.1:1234")
	adopt(hub, client)
	registry.Join("c1", client)
	for i := 0; i < 2; i++ {
		client.Send(outbound(t, protocol.EventNewMessage, protocol.Message{"id": "m", "text": "x"}))
	}
	req.Eventually(func() bool { return client.Closed() && hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)

	// When its read pump still hands over a join it had already read
	hub.engine.HandleFrame(client, []byte(`{"event":"join_conversation","data":{"conversationId":"c9"}}`))

	// Then the session stays out of the registry
	req.Empty(registry.ConversationsOf(client.ID()))
	req.Zero(registry.MemberCount("c9"))
	req.Zero(registry.ConversationCount())
}

func TestClient_FullQueueRequestsEvictionOnce(t *testing.T) {
	// The hub loop is not running, so eviction requests pile up on its channel
	hub, _ := newTestHub(t, func(cfg *Config) { cfg.SendBufferSize = 1 })
	client := NewClient(nil, hub, "127.0.0.1:1234")

	for i := 0; i < 10; i++ {
		client.Send(outbound(t, protocol.EventNewMessage, protocol.Message{"id": "m", "text": "x"}))
	}

	select {
	case d := <-hub.unregister:
		require.Same(t, client, d.client)
		require.Equal(t, "send buffer full", d.reason)
	case <-time.After(time.Second):
		t.Fatal("no eviction requested")
	}

	select {
	case d := <-hub.unregister:
		t.Fatalf("eviction requested twice for %s", d.client.ID())
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClient_RemovalRacingWithInboundFrames(t *testing.T) {
	req := require.New(t)

	for round := 0; round < 20; round++ {
		hub, registry := newTestHub(t, nil)
		go hub.Run()

		victim := NewClient(nil, hub, "127.0.0.1:1")
		peer := NewClient(nil, hub, "127.0.0.1:2")
		adopt(hub, victim)
		adopt(hub, peer)
		hub.engine.Dispatch(victim, protocol.JoinConversation{ConversationID: "c1"})
		hub.engine.Dispatch(peer, protocol.JoinConversation{ConversationID: "c1"})

		start := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(3)
		go func() {
			defer wg.Done()
			<-start
			for i := 0; i < 50; i++ {
				hub.engine.HandleFrame(victim, []byte(fmt.Sprintf(
					`{"event":"join_conversation","data":{"conversationId":"c%d"}}`, i%4)))
			}
		}()
		go func() {
			defer wg.Done()
			<-start
			for i := 0; i < 50; i++ {
				hub.engine.HandleFrame(peer, []byte(fmt.Sprintf(
					`{"event":"send_message","data":{"conversationId":"c1","message":{"id":"m%d","text":"x"}}}`, i)))
			}
		}()
		go func() {
			defer wg.Done()
			<-start
			hub.Unregister(victim, "transport close")
		}()
		close(start)
		wg.Wait()

		// Unregister only hands the request to the hub loop
		req.Eventually(func() bool {
			return victim.Closed() && len(registry.ConversationsOf(victim.ID())) == 0
		}, time.Second, 5*time.Millisecond, "round %d", round)
		req.Equal([]string{"c1"}, registry.ConversationsOf(peer.ID()), "round %d", round)
		req.Equal(1, registry.ConversationCount(), "round %d", round)

		// Nothing more is queued for the victim once it is closed
		queued := len(victim.GetSendChan())
		hub.engine.Dispatch(peer, protocol.SendMessage{
			ConversationID: "c1",
			Message:        protocol.Message{"id": "late", "text": "x"},
		})
		req.Equal(queued, len(victim.GetSendChan()), "round %d", round)

		req.NoError(hub.Shutdown(time.Second))
	}
}
