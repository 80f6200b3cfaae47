// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the built-in test page.
package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     isOriginAllowed,
}

// WebSocketHandler returns the handler that upgrades HTTP requests to
// WebSocket sessions. Each accepted connection gets a Session with a fresh
// display name and is handed to the hub, which launches its pumps.
func WebSocketHandler(hub *Hub, dispatcher *Dispatcher, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
			return
		}

		sess := NewSession(conn, hub, dispatcher, r.RemoteAddr, log)
		hub.RegisterChan() <- sess
	}
}

// HealthHandler provides a simple health check endpoint that returns server
// status as plain text.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "ratechat server is running!")
}

// TestPageHandler serves a minimal HTML page for exercising the chat from a
// browser: connect, send messages, and try the /exchange command.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	html := `<!DOCTYPE html>
<html>
<head>
    <title>ratechat</title>
    <style>
        body { font-family: monospace; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            white-space: pre;
            background-color: #f9f9f9;
        }
        input[type="text"] { width: 300px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; cursor: pointer; }
    </style>
</head>
<body>
    <h1>ratechat</h1>
    <p>Plain text is chat. <code>/exchange [days]</code> broadcasts exchange rates for up to 10 past days.</p>

    <div>
        <input type="text" id="messageInput" placeholder="Type a message or /exchange 2...">
        <button onclick="sendMessage()">Send</button>
    </div>

    <div id="messages"></div>

    <script>
        const messagesDiv = document.getElementById('messages');
        const messageInput = document.getElementById('messageInput');
        const ws = new WebSocket('ws://' + location.host + '/ws');

        function addLine(line) {
            messagesDiv.textContent += line + '\n';
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        ws.onopen = () => addLine('[connected]');
        ws.onmessage = (event) => addLine(event.data);
        ws.onclose = () => addLine('[disconnected]');

        function sendMessage() {
            const message = messageInput.value.trim();
            if (message && ws.readyState === WebSocket.OPEN) {
                ws.send(message);
                messageInput.value = '';
            }
        }

        messageInput.addEventListener('keypress', (e) => {
            if (e.key === 'Enter') sendMessage();
        });
    </script>
</body>
</html>`
	_, _ = fmt.Fprint(w, html)
}
