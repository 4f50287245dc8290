package httpstream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/engine"
	"github.com/hupe1980/agentrelay/internal/testutil"
	"github.com/hupe1980/agentrelay/stream"
)

func decodeLines(t *testing.T, body []byte) []core.WireEvent {
	t.Helper()
	var events []core.WireEvent
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev core.WireEvent
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		events = append(events, ev)
	}
	return events
}

func TestHandleStream_HappyPath(t *testing.T) {
	eng := engine.NewScripted(testutil.SimpleRun("Hello", " world"))
	handler := NewHandler(stream.New(eng), func(o *Options) {
		o.ConnectionTimeout = 5 * time.Second
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/runs/stream",
		strings.NewReader(`{"message":"hi","thread_id":"t-1"}`))
	rec := httptest.NewRecorder()

	handler.HandleStream(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ContentTypeNDJSON, rec.Header().Get("Content-Type"))

	events := decodeLines(t, rec.Body.Bytes())
	require.Len(t, events, 6)
	assert.Equal(t, core.WireChainStart, events[0].Kind)
	assert.Equal(t, core.WireChainEnd, events[len(events)-1].Kind)
	for _, ev := range events {
		assert.NotEqual(t, core.WireError, ev.Kind)
	}
}

func TestHandleStream_GatewayTimeoutBeforeFirstByte(t *testing.T) {
	eng := engine.NewScripted(nil, func(o *engine.ScriptedOptions) {
		o.HoldOpen = true
	})
	handler := NewHandler(stream.New(eng), func(o *Options) {
		o.ConnectionTimeout = 40 * time.Millisecond
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/runs/stream",
		strings.NewReader(`{"message":"hi","thread_id":"t-1"}`))
	rec := httptest.NewRecorder()

	handler.HandleStream(rec, req)

	require.Equal(t, http.StatusGatewayTimeout, rec.Code)

	var ev core.WireEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ev))
	assert.Equal(t, core.WireError, ev.Kind)
	assert.Equal(t, "timeout", ev.Payload["reason"])
}

func TestHandleStream_TimeoutAfterFirstByteStaysInStream(t *testing.T) {
	eng := engine.NewScripted(
		testutil.NewScriptBuilder().ChainStart("agent").Build(),
		func(o *engine.ScriptedOptions) { o.HoldOpen = true },
	)
	handler := NewHandler(stream.New(eng), func(o *Options) {
		o.ConnectionTimeout = 60 * time.Millisecond
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/runs/stream",
		strings.NewReader(`{"message":"hi","thread_id":"t-1"}`))
	rec := httptest.NewRecorder()

	handler.HandleStream(rec, req)

	// Headers went out with the first event, so the expiry surfaces as the
	// terminal on_error inside the stream, not as a 504.
	require.Equal(t, http.StatusOK, rec.Code)

	events := decodeLines(t, rec.Body.Bytes())
	require.Len(t, events, 2)
	assert.Equal(t, core.WireChainStart, events[0].Kind)
	assert.Equal(t, core.WireError, events[1].Kind)
	assert.Equal(t, "timeout", events[1].Payload["reason"])
}

func TestHandleStream_InvalidBody(t *testing.T) {
	handler := NewHandler(stream.New(engine.NewScripted(nil)))

	req := httptest.NewRequest(http.MethodPost, "/v1/runs/stream", strings.NewReader("{nope"))
	rec := httptest.NewRecorder()

	handler.HandleStream(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var ev core.WireEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ev))
	assert.Equal(t, core.WireError, ev.Kind)
}
