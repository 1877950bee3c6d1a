package server

import (
	g "maragu.dev/gomponents"
	h "maragu.dev/gomponents/html"
)

const roomPageCSS = `
body { font-family: Arial, sans-serif; margin: 20px; }
#messages {
    border: 1px solid #ccc;
    height: 300px;
    padding: 10px;
    overflow-y: scroll;
    margin: 10px 0;
    background-color: #f9f9f9;
}
input[type="text"] { width: 300px; padding: 5px; margin-right: 10px; }
button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
.status { margin: 10px 0; padding: 5px; border-radius: 3px; }
.connected { background-color: #d4edda; color: #155724; }
.disconnected { background-color: #f8d7da; color: #721c24; }
`

const roomPageJS = `
const roomName = document.body.dataset.room;
const messagesDiv = document.getElementById('messages');
const messageInput = document.getElementById('messageInput');
const sendButton = document.getElementById('sendButton');
const statusDiv = document.getElementById('status');
const scheme = window.location.protocol === 'https:' ? 'wss://' : 'ws://';
const ws = new WebSocket(scheme + window.location.host + '/ws/chat/' + roomName + '/');

function addLine(text) {
    const line = document.createElement('div');
    line.textContent = text;
    messagesDiv.appendChild(line);
    messagesDiv.scrollTop = messagesDiv.scrollHeight;
}

function setConnected(connected) {
    statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
    statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
    messageInput.disabled = !connected;
    sendButton.disabled = !connected;
}

ws.onopen = function() { setConnected(true); };
ws.onclose = function() { setConnected(false); addLine('Connection closed'); };
ws.onmessage = function(e) { addLine(JSON.parse(e.data).message); };

function sendMessage() {
    const message = messageInput.value;
    if (message && ws.readyState === WebSocket.OPEN) {
        ws.send(JSON.stringify({message: message}));
        messageInput.value = '';
    }
}

sendButton.onclick = sendMessage;
messageInput.addEventListener('keyup', function(e) {
    if (e.key === 'Enter') { sendMessage(); }
});
`

// RoomPage renders the browser page for trying out roomName.
func RoomPage(roomName string) g.Node {
	return h.Doctype(
		h.HTML(
			h.Lang("en"),
			h.Head(
				h.Meta(h.Charset("utf-8")),
				h.TitleEl(g.Text("Chat room "+roomName)),
				h.StyleEl(g.Raw(roomPageCSS)),
			),
			h.Body(
				h.Data("room", roomName),
				h.H1(g.Text("Room: "+roomName)),
				h.Div(h.ID("status"), h.Class("status disconnected"), g.Text("Disconnected")),
				h.Div(
					h.Input(h.Type("text"), h.ID("messageInput"), h.Placeholder("Type a message..."), h.Disabled()),
					h.Button(h.ID("sendButton"), h.Disabled(), g.Text("Send")),
				),
				h.Div(h.ID("messages")),
				h.Script(g.Raw(roomPageJS)),
			),
		),
	)
}
