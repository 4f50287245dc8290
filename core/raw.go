package core

// RawKind classifies an event as produced by the execution engine, before
// normalization. The set mirrors the engine's internal lifecycle: logical
// units of work (chain), model invocations, tool invocations, message
// payloads and control signals.
type RawKind string

const (
	// RawChainStart marks the engine entering a logical unit of work.
	RawChainStart RawKind = "chain_start"
	// RawChainEnd marks the engine leaving a logical unit of work. A root
	// chain end is the engine's completion signal.
	RawChainEnd RawKind = "chain_end"
	// RawModelStart marks the beginning of a model invocation.
	RawModelStart RawKind = "model_start"
	// RawModelStream carries one streamed model token chunk.
	RawModelStream RawKind = "model_stream"
	// RawModelEnd marks the end of a model invocation. Each model end
	// terminates one shard of the logical answer.
	RawModelEnd RawKind = "model_end"
	// RawToolStart marks a tool invocation starting.
	RawToolStart RawKind = "tool_start"
	// RawToolEnd marks a tool invocation finishing (success or failure).
	RawToolEnd RawKind = "tool_end"
	// RawMessage carries a complete message object (human/ai/system/tool).
	RawMessage RawKind = "message"
	// RawError reports a failure surfaced by the engine inside the run.
	RawError RawKind = "error"
	// RawInterrupt signals a human-in-the-loop gate; the pipeline relays it
	// transparently.
	RawInterrupt RawKind = "interrupt"
)

// RawEvent is one unit of progress emitted by the execution engine. The
// relay treats Data as opaque: it may be a primitive, a map, a sequence, a
// Message, a Send directive, or any engine-internal object. Normalization
// coerces it into a JSON-safe payload.
type RawEvent struct {
	Kind RawKind
	// Name identifies the unit the event belongs to (chain name, model
	// name, tool name). Optional.
	Name string
	// ID is a provider-assigned identifier (message id, tool call id).
	// Optional.
	ID string
	// Data carries the event payload.
	Data any
	// Meta carries correlation fields passed through to WireEvent.Metadata.
	Meta map[string]any
}

// NewTokenEvent builds a model_stream raw event carrying one token chunk.
func NewTokenEvent(content string) RawEvent {
	return RawEvent{Kind: RawModelStream, Data: content}
}

// NewToolStartEvent builds a tool_start raw event for the named tool.
func NewToolStartEvent(name string, input any) RawEvent {
	return RawEvent{Kind: RawToolStart, Name: name, Data: input}
}

// NewToolEndEvent builds a tool_end raw event carrying the tool output.
func NewToolEndEvent(name string, output any) RawEvent {
	return RawEvent{Kind: RawToolEnd, Name: name, Data: output}
}

// NewErrorEvent builds an error raw event with a human readable description.
func NewErrorEvent(description string) RawEvent {
	return RawEvent{Kind: RawError, Data: description}
}
