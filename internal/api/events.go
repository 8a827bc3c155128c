package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bluewatt/bluewatt-core/internal/stream"
)

// defaultHeartbeatInterval is used when the stream section is unconfigured.
const defaultHeartbeatInterval = 15 * time.Second

// eventConnected opens every subscription. It is emitted by the connection
// handlers, never by the ingestion pipeline.
const eventConnected = "connected"

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// connectedEvent is the payload of the "connected" event sent once per
// subscription, before any anomaly events.
type connectedEvent struct {
	SubscriberID string   `json:"subscriber_id"`
	UserID       string   `json:"user_id"`
	DeviceIDs    []string `json:"device_ids"`
}

// handleEventStream serves the SSE live-event stream for an authenticated
// viewer.
//
// The permitted device set is computed once at connect from ownership;
// devices registered afterwards require a reconnect. The stream opens with a
// "connected" event, then carries "anomaly" and "anomaly_resolved" events as
// the fanout registry publishes them, with comment-frame heartbeats on idle
// connections.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFromContext(r.Context())
	if viewer == nil {
		writeUnauthorized(w, "missing access token")
		return
	}

	deviceIDs, err := s.devices.ListIDsByOwner(r.Context(), viewer.Subject)
	if err != nil {
		s.logger.Error("listing viewer devices failed", "error", err, "user_id", viewer.Subject)
		writeInternalError(w, "failed to resolve device ownership")
		return
	}

	// The server write timeout would sever the stream mid-connection.
	//nolint:errcheck // recorder-backed writers in tests have no deadline to clear
	http.NewResponseController(w).SetWriteDeadline(time.Time{})

	sink, err := stream.NewSSESink(w)
	if err != nil {
		writeInternalError(w, "streaming unsupported")
		return
	}

	subID := "sub-" + uuid.NewString()[:8]
	s.fanout.Subscribe(subID, viewer.Subject, deviceIDs, sink)
	defer s.fanout.Unsubscribe(subID)

	if err := s.sendConnected(sink, subID, viewer.Subject, deviceIDs); err != nil {
		return
	}

	s.logger.Info("event stream connected",
		"subscriber_id", subID,
		"user_id", viewer.Subject,
		"devices", len(deviceIDs),
	)

	heartbeat := time.NewTicker(s.heartbeatInterval())
	defer heartbeat.Stop()

	srvDone := s.serverDone()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-srvDone:
			return
		case <-heartbeat.C:
			if err := sink.Comment("heartbeat"); err != nil {
				return
			}
		}
	}
}

// handleEventsWS upgrades the connection and attaches a WebSocket sink to
// the same fanout registry as the SSE stream. Incoming client messages are
// discarded; the endpoint is publish-only apart from ping/pong keepalive.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFromContext(r.Context())
	if viewer == nil {
		writeUnauthorized(w, "missing access token")
		return
	}

	deviceIDs, err := s.devices.ListIDsByOwner(r.Context(), viewer.Subject)
	if err != nil {
		s.logger.Error("listing viewer devices failed", "error", err, "user_id", viewer.Subject)
		writeInternalError(w, "failed to resolve device ownership")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	sink := stream.NewWebSocketSink(conn)
	subID := "sub-" + uuid.NewString()[:8]
	s.fanout.Subscribe(subID, viewer.Subject, deviceIDs, sink)

	if err := s.sendConnected(sink, subID, viewer.Subject, deviceIDs); err != nil {
		s.fanout.Unsubscribe(subID)
		conn.Close()
		return
	}

	s.logger.Info("websocket events connected",
		"subscriber_id", subID,
		"user_id", viewer.Subject,
		"devices", len(deviceIDs),
	)

	go s.wsPingLoop(subID, sink, conn)
	go s.wsReadLoop(subID, conn)
}

// sendConnected writes the opening "connected" event on a fresh sink.
func (s *Server) sendConnected(sink stream.Sink, subID, userID string, deviceIDs []string) error {
	data, err := json.Marshal(connectedEvent{
		SubscriberID: subID,
		UserID:       userID,
		DeviceIDs:    deviceIDs,
	})
	if err != nil {
		return err
	}
	return sink.Send(eventConnected, data)
}

// wsReadLoop drains client messages and detects disconnects. The read
// deadline is refreshed on every pong so a silent peer eventually fails.
func (s *Server) wsReadLoop(subID string, conn *websocket.Conn) {
	defer func() {
		s.fanout.Unsubscribe(subID)
		conn.Close()
	}()

	pingInterval := time.Duration(s.wsCfg.PingInterval) * time.Second
	pongWait := time.Duration(s.wsCfg.PongTimeout) * time.Second
	deadline := pingInterval + pongWait

	conn.SetReadLimit(int64(s.wsCfg.MaxMessageSize))
	//nolint:errcheck // Best-effort deadline on connection setup
	conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error", "subscriber_id", subID, "error", err)
			} else {
				s.logger.Debug("websocket closed", "subscriber_id", subID)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		conn.SetReadDeadline(time.Now().Add(deadline))
	}
}

// wsPingLoop sends protocol-level pings until the connection dies or the
// server shuts down.
func (s *Server) wsPingLoop(subID string, sink *stream.WebSocketSink, conn *websocket.Conn) {
	pingInterval := time.Duration(s.wsCfg.PingInterval) * time.Second
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	srvDone := s.serverDone()
	for {
		select {
		case <-srvDone:
			s.fanout.Unsubscribe(subID)
			conn.Close()
			return
		case <-ticker.C:
			if err := sink.Ping(); err != nil {
				s.fanout.Unsubscribe(subID)
				conn.Close()
				return
			}
		}
	}
}

// heartbeatInterval returns the configured SSE heartbeat cadence.
func (s *Server) heartbeatInterval() time.Duration {
	if s.streamCfg.HeartbeatInterval <= 0 {
		return defaultHeartbeatInterval
	}
	return time.Duration(s.streamCfg.HeartbeatInterval) * time.Second
}

// serverDone returns a channel closed when Close() is called. Before Start()
// the server has no lifecycle context, so a never-closed channel is returned.
func (s *Server) serverDone() <-chan struct{} {
	if s.ctx == nil {
		return nil
	}
	return s.ctx.Done()
}
