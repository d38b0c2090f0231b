// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, process stats and the built-in test page.
package server

import (
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/process"
)

// HealthBody is the static body served at the root path.
const HealthBody = "<h1>Chat Server Backend Running</h1>"

// WebSocketHandler upgrades the request to a WebSocket, creates a Client for
// it and registers the client with the hub, which launches its pumps.
func (s *Server) WebSocketHandler(c echo.Context) error {
	r := c.Request()

	conn, err := s.upgrader.Upgrade(c.Response(), r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error response.
		s.log.Warn("WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return nil
	}

	client := NewClient(conn, s.hub, r.RemoteAddr)
	if !s.hub.Register(client) {
		client.log.Info("Rejecting connection during shutdown")
		client.closeConnection()
	}
	return nil
}

// HealthHandler answers liveness probes with a fixed HTML body.
func HealthHandler(c echo.Context) error {
	return c.HTML(http.StatusOK, HealthBody)
}

// StatsHandler reports live sessions, active conversations and the resident
// memory of the process.
func (s *Server) StatsHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, Stats{
		Sessions:      s.hub.ClientCount(),
		Conversations: s.registry.ConversationCount(),
		RSSBytes:      s.residentMemory(),
	})
}

func (s *Server) residentMemory() uint64 {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		s.log.Warn("Unable to inspect own process", "error", err)
		return 0
	}
	memInfo, err := p.MemoryInfo()
	if err != nil {
		s.log.Warn("Unable to read process memory", "error", err)
		return 0
	}
	return memInfo.RSS
}

// TestPageHandler serves an HTML page for trying the event protocol from a
// browser: join a conversation, send messages and mark them read.
func TestPageHandler(c echo.Context) error {
	return c.HTML(http.StatusOK, testPage)
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>Chat Relay Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #events {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] { width: 200px; padding: 5px; margin-right: 10px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>Chat Relay Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
        <input type="text" id="conversationInput" placeholder="Conversation id" value="general">
        <button onclick="emit('join_conversation', {conversationId: conversation()})">Join</button>
        <button onclick="emit('leave_conversation', {conversationId: conversation()})">Leave</button>
    </div>
    <div style="margin-top: 10px">
        <input type="text" id="messageInput" placeholder="Type a message...">
        <button onclick="sendMessage()">Send</button>
    </div>

    <div id="events"></div>

    <script>
        let ws = null;
        const eventsDiv = document.getElementById('events');
        const statusDiv = document.getElementById('status');
        const connectButton = document.getElementById('connectButton');
        const messageInput = document.getElementById('messageInput');

        function conversation() {
            return document.getElementById('conversationInput').value.trim();
        }

        function log(text, color) {
            const line = document.createElement('div');
            line.style.margin = '5px 0';
            line.style.color = color || 'gray';
            line.textContent = text;
            eventsDiv.appendChild(line);
            eventsDiv.scrollTop = eventsDiv.scrollHeight;
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function emit(event, data) {
            if (!ws || ws.readyState !== WebSocket.OPEN) {
                log('Not connected');
                return;
            }
            ws.send(JSON.stringify({event: event, data: data}));
            log('> ' + event + ' ' + JSON.stringify(data), 'blue');
        }

        function sendMessage() {
            const text = messageInput.value.trim();
            if (!text) {
                return;
            }
            const id = (crypto.randomUUID ? crypto.randomUUID() : String(Date.now()));
            emit('send_message', {conversationId: conversation(), message: {id: id, text: text}});
            messageInput.value = '';
        }

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');

            ws.onopen = function() {
                log('Connected');
                updateStatus(true);
            };

            ws.onmessage = function(event) {
                const frame = JSON.parse(event.data);
                log('< ' + frame.event + ' ' + JSON.stringify(frame.data), 'green');
                if (frame.event === 'new_message') {
                    emit('message_read', {conversationId: conversation(), messageId: frame.data.id});
                }
            };

            ws.onclose = function() {
                log('Connection closed');
                updateStatus(false);
                ws = null;
            };

            ws.onerror = function() {
                log('Connection error');
                updateStatus(false);
            };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
