// Package anthropic adapts the Anthropic Messages API to the core.Engine
// interface, translating one completion into the relay's raw event
// lifecycle (chain, model, tool events).
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/agentrelay/core"
)

// Options configures the Anthropic engine adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	// System is prepended as the system prompt when non-empty.
	System string
	// HITLEnabled emits an interrupt event before any tool use so a
	// human-in-the-loop gate can be surfaced downstream.
	HITLEnabled bool
}

// Engine wraps the Anthropic Messages API behind core.Engine.
type Engine struct {
	client *anthropic.Client
	opts   Options
}

var _ core.Engine = (*Engine)(nil)

// New creates an Anthropic engine using the official client.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Engine{client: &client, opts: opts}
}

// NewFromClient creates an Anthropic engine from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Engine{client: client, opts: opts}
}

// Run implements core.Engine. One invocation maps to one Messages API call;
// the response is decomposed into the raw event lifecycle.
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
		if !emit(core.RawEvent{Kind: core.RawModelStart, Name: string(e.opts.Model)}) {
			return
		}

		params := anthropic.MessageNewParams{
			Model:       e.opts.Model,
			Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(message))},
			MaxTokens:   e.opts.MaxTokens,
			Temperature: anthropic.Float(e.opts.Temperature),
		}
		if e.opts.System != "" {
			params.System = []anthropic.TextBlockParam{{Text: e.opts.System}}
		}

		resp, err := e.client.Messages.New(ctx, params)
		if err != nil {
			errs <- fmt.Errorf("anthropic api error: %w", err)
			return
		}

		var fullText string
		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				textBlock := block.AsText()
				if textBlock.Text == "" {
					continue
				}
				fullText += textBlock.Text
				if !emit(core.RawEvent{Kind: core.RawModelStream, ID: resp.ID, Data: textBlock.Text}) {
					return
				}
			case "tool_use":
				toolBlock := block.AsToolUse()
				if e.opts.HITLEnabled {
					if !emit(core.RawEvent{Kind: core.RawInterrupt, Name: toolBlock.Name}) {
						return
					}
				}
				if !emit(core.NewToolStartEvent(toolBlock.Name, toolBlock.Input)) {
					return
				}
				// Tool execution is the engine's concern, not the relay's;
				// this adapter only relays the request back to the caller.
				if !emit(core.NewToolEndEvent(toolBlock.Name, map[string]any{"delegated": true, "id": toolBlock.ID})) {
					return
				}
			}
		}

		finishReason := "stop"
		if resp.StopReason != "" {
			finishReason = string(resp.StopReason)
		}

		if !emit(core.RawEvent{
			Kind: core.RawModelEnd,
			Name: string(e.opts.Model),
			ID:   resp.ID,
			Data: core.Message{Role: "ai", Content: fullText, ID: resp.ID, ResponseMetadata: map[string]any{"stop_reason": finishReason}},
		}) {
			return
		}
		emit(core.RawEvent{Kind: core.RawChainEnd, Name: "agent"})
	}()

	return events, errs, nil
}
