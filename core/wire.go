package core

// WireKind is the closed set of event kinds delivered to clients. No other
// kind ever crosses the wire; in particular the legacy
// tool_execution_started / tool_execution_completed pair is not part of
// the protocol and must never be emitted.
type WireKind string

const (
	// WireChainStart is emitted when the engine enters a logical unit of work.
	WireChainStart WireKind = "on_chain_start"
	// WireChainEnd is emitted when the engine leaves a logical unit of work.
	WireChainEnd WireKind = "on_chain_end"
	// WireChatModelStart is emitted when a model invocation begins.
	WireChatModelStart WireKind = "on_chat_model_start"
	// WireChatModelStream carries one streamed token chunk.
	WireChatModelStream WireKind = "on_chat_model_stream"
	// WireChatModelEnd is emitted when a model invocation completes.
	WireChatModelEnd WireKind = "on_chat_model_end"
	// WireToolCall carries tool lifecycle with status running|completed.
	WireToolCall WireKind = "on_tool_call"
	// WireError is the terminal failure/cancellation/timeout event.
	WireError WireKind = "on_error"
)

// Tool call status values carried in on_tool_call payloads.
const (
	ToolStatusRunning   = "running"
	ToolStatusCompleted = "completed"
)

// Cancellation reasons carried in terminal on_error payloads.
const (
	ReasonClientDisconnect = "client_disconnect_or_timeout"
	ReasonTimeout          = "timeout"
)

// WireEvent is one normalized, JSON-safe unit of progress. It is immutable
// after construction: producers build a fresh payload map per event and
// consumers must not mutate it. Payload values are restricted to maps with
// string keys, slices, and primitives.
type WireEvent struct {
	Kind     WireKind       `json:"event"`
	Payload  map[string]any `json:"data,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewErrorWireEvent builds a terminal on_error event. Reason may be empty
// for plain failures.
func NewErrorWireEvent(description, reason string) WireEvent {
	payload := map[string]any{"error": description}
	if reason != "" {
		payload["reason"] = reason
	}
	return WireEvent{Kind: WireError, Payload: payload}
}

// IsTerminal reports whether the event ends a run from the client's
// perspective.
func (e WireEvent) IsTerminal() bool { return e.Kind == WireError }
