package stream

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsWriteWait bounds how long a single WebSocket write may take before the
// connection is considered dead.
const wsWriteWait = 10 * time.Second

// WSFrame is the JSON envelope written for each event on a WebSocket sink.
// It mirrors the SSE framing: a named event plus its payload.
type WSFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// WebSocketSink adapts a gorilla WebSocket connection to the Sink interface
// so WebSocket viewers share the same registry as SSE viewers.
//
// Writes are serialized internally: gorilla connections permit only one
// concurrent writer, and the handler's ping loop runs alongside registry
// deliveries.
type WebSocketSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWebSocketSink wraps an upgraded connection.
func NewWebSocketSink(conn *websocket.Conn) *WebSocketSink {
	return &WebSocketSink{conn: conn}
}

// Send writes one event frame as a JSON text message.
func (s *WebSocketSink) Send(event string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	if err := s.conn.WriteJSON(WSFrame{Event: event, Data: data}); err != nil {
		return fmt.Errorf("writing websocket frame: %w", err)
	}
	return nil
}

// Ping sends a WebSocket ping control frame.
func (s *WebSocketSink) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		return fmt.Errorf("writing ping: %w", err)
	}
	return nil
}
