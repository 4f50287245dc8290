package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/engine"
	"github.com/hupe1980/agentrelay/internal/testutil"
	"github.com/hupe1980/agentrelay/stream"
)

func dialTestServer(t *testing.T, server *Server) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(server.HandleWebSocket))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) core.WireEvent {
	t.Helper()
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev core.WireEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestHandleWebSocket_ChatRun(t *testing.T) {
	eng := engine.NewScripted(testutil.SimpleRun("Hello", " world"))
	server := NewServer(stream.New(eng))
	conn := dialTestServer(t, server)

	require.NoError(t, conn.WriteJSON(Envelope{
		Type:      MessageTypeChat,
		Message:   "hi",
		ThreadID:  "t-1",
		RequestID: "req-1",
	}))

	var kinds []core.WireKind
	for i := 0; i < 6; i++ {
		ev := readEvent(t, conn)
		kinds = append(kinds, ev.Kind)
		assert.Equal(t, "t-1", ev.Metadata["thread_id"])
		assert.Equal(t, "req-1", ev.Metadata["request_id"])
	}

	assert.Equal(t, []core.WireKind{
		core.WireChainStart,
		core.WireChatModelStart,
		core.WireChatModelStream,
		core.WireChatModelStream,
		core.WireChatModelEnd,
		core.WireChainEnd,
	}, kinds)
}

func TestHandleWebSocket_UnknownType(t *testing.T) {
	server := NewServer(stream.New(engine.NewScripted(nil)))
	conn := dialTestServer(t, server)

	require.NoError(t, conn.WriteJSON(Envelope{Type: "bogus", RequestID: "req-9"}))

	ev := readEvent(t, conn)
	assert.Equal(t, core.WireError, ev.Kind)
	assert.Contains(t, ev.Payload["error"], "unknown message type")
	assert.Equal(t, "req-9", ev.Metadata["request_id"])
}

func TestHandleWebSocket_MissingThreadID(t *testing.T) {
	server := NewServer(stream.New(engine.NewScripted(nil)))
	conn := dialTestServer(t, server)

	require.NoError(t, conn.WriteJSON(Envelope{Type: MessageTypeChat, Message: "hi"}))

	ev := readEvent(t, conn)
	assert.Equal(t, core.WireError, ev.Kind)
	assert.Contains(t, ev.Payload["error"], "thread_id")
}

func TestHandleWebSocket_InvalidJSON(t *testing.T) {
	server := NewServer(stream.New(engine.NewScripted(nil)))
	conn := dialTestServer(t, server)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{nope")))

	ev := readEvent(t, conn)
	assert.Equal(t, core.WireError, ev.Kind)
}

func TestHandleWebSocket_ConcurrentRunsOnOneConnection(t *testing.T) {
	eng := engine.NewScripted(
		testutil.NewScriptBuilder().ChainStart("agent").ChainEnd("agent").Build(),
	)
	server := NewServer(stream.New(eng))
	conn := dialTestServer(t, server)

	require.NoError(t, conn.WriteJSON(Envelope{Type: MessageTypeChat, Message: "a", ThreadID: "t-1", RequestID: "r-1"}))
	require.NoError(t, conn.WriteJSON(Envelope{Type: MessageTypeChat, Message: "b", ThreadID: "t-2", RequestID: "r-2"}))

	// Four events total; each belongs to exactly one request and events of
	// one request arrive in order.
	seen := map[string][]core.WireKind{}
	for i := 0; i < 4; i++ {
		ev := readEvent(t, conn)
		reqID, _ := ev.Metadata["request_id"].(string)
		seen[reqID] = append(seen[reqID], ev.Kind)
	}

	expected := []core.WireKind{core.WireChainStart, core.WireChainEnd}
	assert.Equal(t, expected, seen["r-1"])
	assert.Equal(t, expected, seen["r-2"])
}
