package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/stream"
)

// MessageTypeChat is the only inbound envelope type the adapter accepts.
const MessageTypeChat = "chat"

// Envelope is the inbound client message shape: one logical request per
// websocket message.
type Envelope struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	ThreadID  string `json:"thread_id"`
	RequestID string `json:"request_id,omitempty"`
}

// Options holds configuration overrides passed to NewServer().
type Options struct {
	// ReadLimit bounds inbound message size in bytes.
	ReadLimit int64
	// WriteTimeout bounds each outbound write.
	WriteTimeout time.Duration
	// HeartbeatInterval is the ping cadence; pongs extend the read deadline.
	HeartbeatInterval time.Duration
	// Logger receives transport logs.
	Logger logging.Logger
}

// Server upgrades HTTP requests to websocket connections and bridges them
// to the stream coordinator.
type Server struct {
	coordinator       *stream.Coordinator
	upgrader          websocket.Upgrader
	readLimit         int64
	writeTimeout      time.Duration
	heartbeatInterval time.Duration
	logger            logging.Logger
}

// NewServer constructs a websocket server with optional overrides.
func NewServer(coordinator *stream.Coordinator, optFns ...func(o *Options)) *Server {
	opts := Options{
		ReadLimit:         1 << 20,
		WriteTimeout:      10 * time.Second,
		HeartbeatInterval: 25 * time.Second,
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Server{
		coordinator:       coordinator,
		readLimit:         opts.ReadLimit,
		writeTimeout:      opts.WriteTimeout,
		heartbeatInterval: opts.HeartbeatInterval,
		logger:            opts.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Origin policy is enforced upstream of the relay.
				return true
			},
		},
	}
}

// connection holds per-websocket state. The send channel is unbuffered so
// at most one event is in flight between a run task and the write pump.
type connection struct {
	ws     *websocket.Conn
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	activeRuns map[string]context.CancelFunc
}

// HandleWebSocket upgrades the request and runs the connection's read and
// write pumps until disconnect.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	conn := &connection{
		ws:         ws,
		send:       make(chan []byte),
		ctx:        ctx,
		cancel:     cancel,
		activeRuns: make(map[string]context.CancelFunc),
	}

	ws.SetReadLimit(s.readLimit)

	go s.writePump(conn)
	s.readPump(conn)
}

// readPump reads envelopes until the connection drops, then cancels every
// active run on the connection.
func (s *Server) readPump(conn *connection) {
	defer func() {
		conn.cancelAllRuns()
		conn.cancel()
		conn.ws.Close()
	}()

	readDeadline := 2 * s.heartbeatInterval
	conn.ws.SetReadDeadline(time.Now().Add(readDeadline))
	conn.ws.SetPongHandler(func(string) error {
		conn.ws.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket read error: %v", err)
			}
			return
		}
		s.handleMessage(conn, data)
	}
}

// writePump serializes outbound writes and keeps the connection alive with
// pings.
func (s *Server) writePump(conn *connection) {
	ticker := time.NewTicker(s.heartbeatInterval)
	defer func() {
		ticker.Stop()
		conn.ws.Close()
	}()

	for {
		select {
		case <-conn.ctx.Done():
			conn.ws.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			conn.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case payload := <-conn.send:
			conn.ws.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := conn.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Warn("websocket write failed: %v", err)
				conn.cancel()
				return
			}

		case <-ticker.C:
			conn.ws.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := conn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.cancel()
				return
			}
		}
	}
}

// handleMessage parses one inbound envelope and starts the run task.
func (s *Server) handleMessage(conn *connection, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.sendError(conn, "", "invalid JSON message")
		return
	}

	if env.Type != MessageTypeChat {
		s.sendError(conn, env.RequestID, "unknown message type: "+env.Type)
		return
	}
	if env.ThreadID == "" {
		s.sendError(conn, env.RequestID, "thread_id is required")
		return
	}

	requestID := env.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	// The run context derives from the connection: a disconnect cancels it,
	// and the coordinator's stream scope bounds it. No connection timeout
	// applies on this transport.
	runCtx, cancel := context.WithCancel(conn.ctx)
	conn.trackRun(requestID, cancel)

	go func() {
		defer func() {
			cancel()
			conn.untrackRun(requestID)
		}()

		sink := s.connectionSink(conn, env.ThreadID, requestID)
		sess, err := s.coordinator.Run(runCtx, env.ThreadID, env.Message, sink)
		if err != nil {
			s.logger.Error("run failed to start thread_id=%s: %v", env.ThreadID, err)
			return
		}
		s.logger.Debug("run finished thread_id=%s trace_id=%s state=%s events=%d",
			sess.ThreadID, sess.TraceID, sess.State, sess.Seq)
	}()
}

// connectionSink forwards wire events as individual websocket messages,
// enriched with correlation metadata.
func (s *Server) connectionSink(conn *connection, threadID, requestID string) core.Sink {
	return core.SinkFunc(func(ctx context.Context, ev core.WireEvent) error {
		out := ev
		meta := make(map[string]any, len(ev.Metadata)+2)
		for k, v := range ev.Metadata {
			meta[k] = v
		}
		meta["thread_id"] = threadID
		meta["request_id"] = requestID
		out.Metadata = meta

		payload, err := json.Marshal(out)
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-conn.ctx.Done():
			return conn.ctx.Err()
		case conn.send <- payload:
			return nil
		}
	})
}

// sendError reports an envelope-level problem without starting a run.
func (s *Server) sendError(conn *connection, requestID, message string) {
	ev := core.NewErrorWireEvent(message, "")
	if requestID != "" {
		ev.Metadata = map[string]any{"request_id": requestID}
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case <-conn.ctx.Done():
	case conn.send <- payload:
	}
}

func (c *connection) trackRun(requestID string, cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeRuns[requestID] = cancel
}

func (c *connection) untrackRun(requestID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.activeRuns, requestID)
}

func (c *connection) cancelAllRuns() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cancel := range c.activeRuns {
		cancel()
	}
}
