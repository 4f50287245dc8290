package normalize

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
)

// explodingError panics when rendered; used to exercise the degradation
// path of Normalize.
type explodingError struct{}

func (explodingError) Error() string { panic("unrenderable") }

func TestNormalize_KindMapping(t *testing.T) {
	n := New(nil)

	cases := []struct {
		raw  core.RawEvent
		want core.WireKind
	}{
		{core.RawEvent{Kind: core.RawChainStart, Name: "agent"}, core.WireChainStart},
		{core.RawEvent{Kind: core.RawChainEnd, Name: "agent"}, core.WireChainEnd},
		{core.RawEvent{Kind: core.RawModelStart, Name: "m"}, core.WireChatModelStart},
		{core.NewTokenEvent("hi"), core.WireChatModelStream},
		{core.RawEvent{Kind: core.RawModelEnd, Name: "m"}, core.WireChatModelEnd},
		{core.NewToolStartEvent("search", nil), core.WireToolCall},
		{core.NewToolEndEvent("search", nil), core.WireToolCall},
		{core.RawEvent{Kind: core.RawMessage, Data: core.Message{Role: "ai", Content: "x"}}, core.WireChatModelEnd},
		{core.NewErrorEvent("boom"), core.WireError},
		{core.RawEvent{Kind: core.RawInterrupt, Name: "approve"}, core.WireChainStart},
		{core.RawEvent{Kind: core.RawKind("something_new")}, core.WireChainStart},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, n.Normalize(tc.raw).Kind, string(tc.raw.Kind))
	}
}

func TestNormalize_StreamChunkShape(t *testing.T) {
	n := New(nil)

	ev := n.Normalize(core.NewTokenEvent("hello"))
	chunk, ok := ev.Payload["chunk"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hello", chunk["content"])
	assert.NotContains(t, chunk, "id")
	assert.NotContains(t, chunk, "additional_kwargs")
	assert.NotContains(t, chunk, "response_metadata")

	rich := n.Normalize(core.RawEvent{
		Kind: core.RawModelStream,
		Data: core.Message{
			Role:             "ai",
			Content:          "hello",
			ID:               "msg-1",
			AdditionalKwargs: map[string]any{"k": "v"},
			ResponseMetadata: map[string]any{"model": "m"},
		},
	})
	chunk = rich.Payload["chunk"].(map[string]any)
	assert.Equal(t, "hello", chunk["content"])
	assert.Equal(t, "msg-1", chunk["id"])
	assert.Equal(t, map[string]any{"k": "v"}, chunk["additional_kwargs"])
	assert.Equal(t, map[string]any{"model": "m"}, chunk["response_metadata"])
}

func TestNormalize_ToolLifecycle(t *testing.T) {
	n := New(nil)

	start := n.Normalize(core.NewToolStartEvent("web_search", map[string]any{"query": "go"}))
	assert.Equal(t, core.WireToolCall, start.Kind)
	assert.Equal(t, "web_search", start.Payload["name"])
	assert.Equal(t, "running", start.Payload["status"])
	assert.Equal(t, map[string]any{"query": "go"}, start.Payload["input"])

	end := n.Normalize(core.NewToolEndEvent("web_search", map[string]any{"hits": 3}))
	assert.Equal(t, core.WireToolCall, end.Kind)
	assert.Equal(t, "completed", end.Payload["status"])
	assert.Equal(t, map[string]any{"hits": 3}, end.Payload["output"])

	// Both lifecycle halves ride the same wire kind; no dedicated
	// started/completed event names exist on the wire.
	for _, ev := range []core.WireEvent{start, end} {
		data, err := json.Marshal(ev)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "tool_execution_started")
		assert.NotContains(t, string(data), "tool_execution_completed")
	}
}

func TestNormalize_MessageCoercion(t *testing.T) {
	n := New(nil)

	ev := n.Normalize(core.RawEvent{
		Kind: core.RawMessage,
		Data: core.Message{Role: "AI", Content: "done", ID: "m-1", Name: "assistant"},
	})

	assert.Equal(t, core.WireChatModelEnd, ev.Kind)
	out, ok := ev.Payload["output"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ai", out["type"], "role must be lowercased")
	assert.Equal(t, "done", out["content"])
	assert.Equal(t, "m-1", out["id"])
	assert.Equal(t, "assistant", out["name"])
	assert.NotContains(t, out, "additional_kwargs")
}

func TestNormalize_Interrupt(t *testing.T) {
	n := New(nil)

	ev := n.Normalize(core.RawEvent{Kind: core.RawInterrupt, Name: "approve_tool"})
	assert.Equal(t, core.WireChainStart, ev.Kind)
	assert.Equal(t, "human_review", ev.Payload["name"])
}

func TestCoerce_Values(t *testing.T) {
	n := New(nil)

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	send := core.Send{Node: "tools", Arg: map[string]any{"call": 1}}

	assert.Equal(t, "2024-05-01T12:00:00Z", n.coerce(ts))
	assert.Equal(t, map[string]any{"type": "send", "node": "tools", "arg": map[string]any{"call": 1}}, n.coerce(send))
	assert.Nil(t, n.coerce(nil))
	assert.Nil(t, n.coerce((*core.Message)(nil)))

	// Typed maps and slices reached via reflection.
	assert.Equal(t, map[string]any{"a": 1}, n.coerce(map[string]int{"a": 1}))
	assert.Equal(t, []any{"x", "y"}, n.coerce([]string{"x", "y"}))
}

func TestCoerce_OpaqueFallbackIsBounded(t *testing.T) {
	n := New(nil)

	type opaque struct{ Payload string }
	v := n.coerce(opaque{Payload: strings.Repeat("z", 500)})

	s, ok := v.(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(s, "<normalize.opaque:"))
	assert.LessOrEqual(t, len(s), maxSummaryLen+len("<normalize.opaque: >"))
}

func TestNormalize_NeverPanics(t *testing.T) {
	n := New(nil)

	var ev core.WireEvent
	require.NotPanics(t, func() {
		ev = n.Normalize(core.RawEvent{Kind: core.RawModelEnd, Data: explodingError{}})
	})

	assert.Equal(t, core.WireChatModelEnd, ev.Kind, "degraded event keeps the kind mapping")
	assert.Equal(t, "error", ev.Payload["status"])
	assert.Equal(t, "Event serialization failed.", ev.Payload["message"])
}

func TestNormalize_MetadataPassthrough(t *testing.T) {
	n := New(nil)

	ev := n.Normalize(core.RawEvent{
		Kind: core.RawChainStart,
		Name: "agent",
		Meta: map[string]any{"thread_id": "t-1"},
	})
	assert.Equal(t, map[string]any{"thread_id": "t-1"}, ev.Metadata)
}
