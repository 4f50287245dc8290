// Package openai adapts the OpenAI Chat Completions API (streaming) to the
// core.Engine interface, translating token deltas and tool call deltas into
// the relay's raw event lifecycle.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/hupe1980/agentrelay/core"
)

// aggCall aggregates partial tool call streaming deltas (id, name,
// arguments) so complete tool events can be emitted when the finish reason
// arrives. Internal helper (unexported).
type aggCall struct{ id, name, args string }

// Options configure the OpenAI engine adapter. Fields mirror a minimal
// subset of Chat Completion parameters; extend via functional options
// without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	// System is prepended as the system message when non-empty.
	System string
	// HITLEnabled emits an interrupt event before tool call events.
	HITLEnabled bool
}

// Engine wraps the OpenAI Chat Completions API behind core.Engine.
type Engine struct {
	client *openai.Client
	opts   Options
}

var _ core.Engine = (*Engine)(nil)

// New creates an OpenAI engine using the official client.
func New(optFns ...func(o *Options)) *Engine {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates an OpenAI engine from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Engine{client: client, opts: opts}
}

// Run implements core.Engine. One invocation maps to one streaming chat
// completion; token deltas become model_stream events as they arrive.
func (e *Engine) Run(ctx context.Context, threadID, message string) (<-chan core.RawEvent, <-chan error, error) {
	events := make(chan core.RawEvent, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		emit := func(ev core.RawEvent) bool {
			select {
			case <-ctx.Done():
				return false
			case events <- ev:
				return true
			}
		}

		if !emit(core.RawEvent{Kind: core.RawChainStart, Name: "agent"}) {
			return
		}
		if !emit(core.RawEvent{Kind: core.RawModelStart, Name: e.opts.Model}) {
			return
		}

		var messages []openai.ChatCompletionMessageParamUnion
		if e.opts.System != "" {
			messages = append(messages, openai.SystemMessage(e.opts.System))
		}
		messages = append(messages, openai.UserMessage(message))

		params := openai.ChatCompletionNewParams{
			Messages:            messages,
			Model:               e.opts.Model,
			Temperature:         openai.Float(e.opts.Temperature),
			MaxCompletionTokens: openai.Int(e.opts.MaxCompletionTokens),
		}

		stream := e.client.Chat.Completions.NewStreaming(ctx, params)
		var textBuilder strings.Builder
		toolAgg := map[int64]*aggCall{}
		finished := false

		for stream.Next() {
			ck := stream.Current()
			for _, ch := range ck.Choices {
				if ch.Delta.Content != "" {
					textBuilder.WriteString(ch.Delta.Content)
					if !emit(core.RawEvent{Kind: core.RawModelStream, ID: ck.ID, Data: ch.Delta.Content}) {
						return
					}
				}
				for _, tc := range ch.Delta.ToolCalls {
					ac, ok := toolAgg[tc.Index]
					if !ok {
						ac = &aggCall{}
						toolAgg[tc.Index] = ac
					}
					if tc.ID != "" {
						ac.id = tc.ID
					}
					if tc.Function.Name != "" {
						ac.name = tc.Function.Name
					}
					if tc.Function.Arguments != "" {
						ac.args += tc.Function.Arguments
					}
				}
				if ch.FinishReason != "" {
					finished = true
					if !e.emitToolEvents(emit, toolAgg) {
						return
					}
					if !emit(core.RawEvent{
						Kind: core.RawModelEnd,
						Name: e.opts.Model,
						ID:   ck.ID,
						Data: core.Message{
							Role:             "ai",
							Content:          textBuilder.String(),
							ID:               ck.ID,
							ResponseMetadata: map[string]any{"finish_reason": ch.FinishReason},
						},
					}) {
						return
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			errs <- fmt.Errorf("openai streaming error: %w", err)
			return
		}
		if !finished {
			if !emit(core.RawEvent{Kind: core.RawModelEnd, Name: e.opts.Model, Data: core.Message{Role: "ai", Content: textBuilder.String()}}) {
				return
			}
		}

		emit(core.RawEvent{Kind: core.RawChainEnd, Name: "agent"})
	}()

	return events, errs, nil
}

// emitToolEvents relays aggregated tool calls as paired start/end events.
// Execution is delegated back to the caller; the relay only carries the
// lifecycle.
func (e *Engine) emitToolEvents(emit func(core.RawEvent) bool, toolAgg map[int64]*aggCall) bool {
	for _, ac := range toolAgg {
		if ac.name == "" {
			continue
		}
		if e.opts.HITLEnabled {
			if !emit(core.RawEvent{Kind: core.RawInterrupt, Name: ac.name}) {
				return false
			}
		}
		if !emit(core.RawEvent{Kind: core.RawToolStart, Name: ac.name, ID: ac.id, Data: ac.args}) {
			return false
		}
		if !emit(core.RawEvent{Kind: core.RawToolEnd, Name: ac.name, ID: ac.id, Data: map[string]any{"delegated": true, "id": ac.id}}) {
			return false
		}
	}
	return true
}
