package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// MaxMessageBytes bounds one inbound message; a webcam frame is well under it.
	MaxMessageBytes = 4 << 20

	readTimeout  = 2 * time.Minute
	writeTimeout = 10 * time.Second
)

// Configure applies the read limit to a freshly upgraded connection.
func Configure(conn *websocket.Conn) {
	conn.SetReadLimit(MaxMessageBytes)
}

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadJSON reads and decodes a message into the provided structure.
// A client silent for longer than the read timeout is disconnected.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	return conn.ReadJSON(v)
}
