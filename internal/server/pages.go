// Package server renders the built-in web pages: the room entry form and the
// chat page that drives the WebSocket client.
package server

import (
	"html/template"
	"log"
	"net/http"
)

type homePageData struct {
	ErrorMessages []string
	Username      string
	RoomID        string
}

type chatPageData struct {
	RoomID   string
	UserID   string
	Username string
}

var homeTemplate = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>RoomChat</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px auto; max-width: 400px; }
        label { display: block; margin: 10px 0 4px; }
        input[type="text"], input[type="number"] { width: 100%; padding: 6px; box-sizing: border-box; }
        button { margin-top: 16px; padding: 8px 20px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
        .errors { background-color: #f8d7da; color: #721c24; padding: 10px; border-radius: 3px; margin-bottom: 10px; }
    </style>
</head>
<body>
    <h1>Join a chat room</h1>
    {{if .ErrorMessages}}
    <div class="errors">
        <ul>
        {{range .ErrorMessages}}<li>{{.}}</li>{{end}}
        </ul>
    </div>
    {{end}}
    <form method="post" action="/join">
        <label for="username">Username</label>
        <input type="text" id="username" name="username" value="{{.Username}}">
        <label for="room_id">Room ID</label>
        <input type="number" id="room_id" name="room_id" value="{{.RoomID}}">
        <button type="submit">Join</button>
    </form>
</body>
</html>`))

var chatTemplate = template.Must(template.New("chat").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>RoomChat - Room {{.RoomID}}</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px auto; max-width: 600px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        .message { margin: 5px 0; padding: 3px; }
        .self { color: blue; text-align: right; }
        .other { color: green; }
        .system { color: gray; font-style: italic; }
        input[type="text"] { width: 400px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
    </style>
</head>
<body>
    <h1>Room {{.RoomID}}</h1>
    <div id="messages"></div>
    <div>
        <input type="text" id="messageInput" placeholder="Type a message...">
        <button onclick="sendMessage()">Send</button>
    </div>

    <script>
        const roomId = {{.RoomID}};
        const userId = {{.UserID}};
        const username = {{.Username}};

        const messagesDiv = document.getElementById('messages');
        const messageInput = document.getElementById('messageInput');

        const scheme = location.protocol === 'https:' ? 'wss' : 'ws';
        const ws = new WebSocket(scheme + '://' + location.host +
            '/ws/chat/' + roomId + '/' + userId +
            '?username=' + encodeURIComponent(username));

        ws.onmessage = function(event) {
            const msg = JSON.parse(event.data);
            const el = document.createElement('div');
            if (msg.sender === 'system') {
                el.className = 'message system';
                el.textContent = msg.text;
            } else if (msg.isSelf) {
                el.className = 'message self';
                el.textContent = 'You: ' + msg.text;
            } else {
                el.className = 'message other';
                el.textContent = msg.sender + ': ' + msg.text;
            }
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        };

        ws.onclose = function() {
            const el = document.createElement('div');
            el.className = 'message system';
            el.textContent = 'Connection closed';
            messagesDiv.appendChild(el);
        };

        function sendMessage() {
            const text = messageInput.value.trim();
            if (text && ws.readyState === WebSocket.OPEN) {
                ws.send(text);
                messageInput.value = '';
            }
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`))

func renderHomePage(w http.ResponseWriter, data homePageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := homeTemplate.Execute(w, data); err != nil {
		log.Printf("Error rendering home page: %v", err)
	}
}

func renderChatPage(w http.ResponseWriter, data chatPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := chatTemplate.Execute(w, data); err != nil {
		log.Printf("Error rendering chat page: %v", err)
	}
}
