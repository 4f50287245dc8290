package testutil

import (
	"github.com/hupe1980/agentrelay/core"
)

// ScriptBuilder provides a fluent helper for constructing raw event scripts
// in tests. Example:
//
//	script := NewScriptBuilder().ChainStart("agent").Tokens("a", "b").ChainEnd("agent").Build()
//
// Chain only the parts you need; a typical run brackets everything with
// ChainStart/ChainEnd.
type ScriptBuilder struct {
	events []core.RawEvent
}

// NewScriptBuilder creates an empty script builder.
func NewScriptBuilder() *ScriptBuilder { return &ScriptBuilder{} }

// ChainStart appends a chain start event (chainable).
func (b *ScriptBuilder) ChainStart(name string) *ScriptBuilder {
	b.events = append(b.events, core.RawEvent{Kind: core.RawChainStart, Name: name})
	return b
}

// ChainEnd appends a chain end event (chainable).
func (b *ScriptBuilder) ChainEnd(name string) *ScriptBuilder {
	b.events = append(b.events, core.RawEvent{Kind: core.RawChainEnd, Name: name})
	return b
}

// ModelStart appends a model start event (chainable).
func (b *ScriptBuilder) ModelStart(name string) *ScriptBuilder {
	b.events = append(b.events, core.RawEvent{Kind: core.RawModelStart, Name: name})
	return b
}

// ModelEnd appends a model end event carrying an assistant message (chainable).
func (b *ScriptBuilder) ModelEnd(name, content string) *ScriptBuilder {
	b.events = append(b.events, core.RawEvent{
		Kind: core.RawModelEnd,
		Name: name,
		Data: core.Message{Role: "ai", Content: content},
	})
	return b
}

// Token appends one streamed token chunk (chainable).
func (b *ScriptBuilder) Token(content string) *ScriptBuilder {
	b.events = append(b.events, core.NewTokenEvent(content))
	return b
}

// Tokens appends a streamed token chunk per argument (chainable).
func (b *ScriptBuilder) Tokens(contents ...string) *ScriptBuilder {
	for _, c := range contents {
		b.events = append(b.events, core.NewTokenEvent(c))
	}
	return b
}

// ToolCall appends a paired tool start/end with the given input and output (chainable).
func (b *ScriptBuilder) ToolCall(name string, input, output any) *ScriptBuilder {
	b.events = append(b.events, core.NewToolStartEvent(name, input), core.NewToolEndEvent(name, output))
	return b
}

// ToolStart appends an unpaired tool start, leaving the invocation open (chainable).
func (b *ScriptBuilder) ToolStart(name string, input any) *ScriptBuilder {
	b.events = append(b.events, core.NewToolStartEvent(name, input))
	return b
}

// Interrupt appends a human-in-the-loop pause event (chainable).
func (b *ScriptBuilder) Interrupt(name string) *ScriptBuilder {
	b.events = append(b.events, core.RawEvent{Kind: core.RawInterrupt, Name: name})
	return b
}

// Error appends an engine-sourced error event (chainable).
func (b *ScriptBuilder) Error(description string) *ScriptBuilder {
	b.events = append(b.events, core.NewErrorEvent(description))
	return b
}

// Raw appends an arbitrary raw event (chainable).
func (b *ScriptBuilder) Raw(ev core.RawEvent) *ScriptBuilder {
	b.events = append(b.events, ev)
	return b
}

// Build returns the accumulated script.
func (b *ScriptBuilder) Build() []core.RawEvent { return b.events }

// SimpleRun returns the canonical happy-path script: chain start, model
// start, streamed tokens, model end and chain end.
func SimpleRun(tokens ...string) []core.RawEvent {
	b := NewScriptBuilder().ChainStart("agent").ModelStart("model")
	b.Tokens(tokens...)
	var full string
	for _, t := range tokens {
		full += t
	}
	return b.ModelEnd("model", full).ChainEnd("agent").Build()
}
