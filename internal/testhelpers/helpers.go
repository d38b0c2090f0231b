// Package testhelpers provides common utilities for testing the relay over
// real HTTP and WebSocket connections.
//
// It provides functions for making HTTP requests, dialing the WebSocket
// endpoint and exchanging event envelopes to reduce duplication in test files.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/sempijja/chat-backend/internal/protocol"
)

// TestOrigin is the Origin header sent by ConnectWebSocket.
const TestOrigin = "http://localhost:3000"

// WebSocketURL converts an httptest server URL into its /ws endpoint.
func WebSocketURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, url string, header http.Header) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	require.NoError(t, err)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

// ConnectWebSocket dials url with origin as the Origin header. An empty
// origin sends no header. The returned response is the handshake response.
func ConnectWebSocket(url, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// MustConnect dials url with TestOrigin and closes the connection when the
// test ends.
func MustConnect(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := ConnectWebSocket(url, TestOrigin)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// SendEvent writes one {"event","data"} envelope.
func SendEvent(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(protocol.OutboundFrame{Event: event, Data: data}))
}

// ReceivedEvent is an envelope read back from the server.
type ReceivedEvent struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

// ReceiveEvent reads the next envelope, failing the test after timeout.
func ReceiveEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) ReceivedEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))

	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev ReceivedEvent
	require.NoError(t, json.Unmarshal(raw, &ev), "frame %q", raw)
	return ev
}

// ExpectNoEvent fails the test if any frame arrives within wait.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))

	_, raw, err := conn.ReadMessage()
	require.Error(t, err, "unexpected frame %q", raw)
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// Eventually polls cond until it holds or the test fails.
func Eventually(t *testing.T, cond func() bool, msgAndArgs ...any) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond, msgAndArgs...)
}
