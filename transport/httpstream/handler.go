package httpstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/stream"
)

// ContentTypeNDJSON is the response content type of a successful stream.
const ContentTypeNDJSON = "application/x-ndjson"

// RunRequest is the POST body starting one run.
type RunRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id"`
}

// Options holds configuration overrides passed to NewHandler().
type Options struct {
	// ConnectionTimeout bounds the window in which the run must produce its
	// first byte. Zero disables the window.
	ConnectionTimeout time.Duration
	// Logger receives transport logs.
	Logger logging.Logger
}

// Handler serves run requests over streaming HTTP.
type Handler struct {
	coordinator *stream.Coordinator
	connTimeout time.Duration
	logger      logging.Logger
}

// NewHandler constructs a streaming HTTP handler with optional overrides.
func NewHandler(coordinator *stream.Coordinator, optFns ...func(o *Options)) *Handler {
	opts := Options{
		ConnectionTimeout: time.Minute,
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Handler{
		coordinator: coordinator,
		connTimeout: opts.ConnectionTimeout,
		logger:      opts.Logger,
	}
}

// HandleStream runs one request to completion, streaming wire events as
// NDJSON. Mount it on a POST route.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ThreadID == "" {
		req.ThreadID = uuid.NewString()
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported by server")
		return
	}

	// The connection scope wraps the whole request. The stream scope is
	// applied inside the coordinator; the stricter of the two wins.
	connCtx := r.Context()
	if h.connTimeout > 0 {
		var cancel context.CancelFunc
		connCtx, cancel = context.WithTimeout(connCtx, h.connTimeout)
		defer cancel()
	}

	sink := &ndjsonSink{w: w, flusher: flusher, connCtx: connCtx}

	sess, err := h.coordinator.Run(connCtx, req.ThreadID, req.Message, sink)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if !sink.started {
		// Nothing reached the client. Headers are still ours to set, so a
		// connection-window expiry becomes a proper gateway timeout instead
		// of an empty 200.
		if errors.Is(connCtx.Err(), context.DeadlineExceeded) {
			writeJSONError(w, http.StatusGatewayTimeout, "no events produced within the connection window")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "run produced no events")
		return
	}

	h.logger.Debug("stream request finished thread_id=%s trace_id=%s state=%s events=%d",
		sess.ThreadID, sess.TraceID, sess.State, sess.Seq)
}

// ndjsonSink writes one JSON line per wire event and flushes immediately.
// Deliveries arrive sequentially from the coordinator, so no locking is
// needed.
type ndjsonSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	connCtx context.Context
	started bool
}

var _ core.Sink = (*ndjsonSink)(nil)

func (s *ndjsonSink) Deliver(ctx context.Context, ev core.WireEvent) error {
	if err := ctx.Err(); err != nil && !s.started {
		return err
	}
	if !s.started {
		// Refuse to open the stream once the connection window has closed:
		// the handler will answer 504 instead.
		if err := s.connCtx.Err(); err != nil {
			return err
		}
		s.w.Header().Set("Content-Type", ContentTypeNDJSON)
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := s.w.Write(append(payload, '\n')); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// writeJSONError answers with an on_error shaped body and the given status.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	reason := ""
	if status == http.StatusGatewayTimeout {
		reason = core.ReasonTimeout
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(core.NewErrorWireEvent(message, reason))
}
