package normalize

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
)

// maxSummaryLen bounds the string representation used for values that are
// not JSON-safe and not otherwise recognized.
const maxSummaryLen = 50

// Normalizer is stateless apart from its logger and safe for concurrent
// use. The zero value is not usable; construct with New.
type Normalizer struct {
	logger logging.Logger
}

// New creates a Normalizer. A nil logger is replaced with a NoOpLogger.
func New(logger logging.Logger) *Normalizer {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Normalizer{logger: logger}
}

// Normalize maps one raw engine event to exactly one wire event. It never
// panics: if payload conversion fails for any reason the event degrades to
// a minimal safe form derived only from the raw event's kind, and the
// failure is logged with the event's kind and top-level keys (never its
// full payload).
func (n *Normalizer) Normalize(raw core.RawEvent) (ev core.WireEvent) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("event normalization failed kind=%s keys=%v cause=%v", raw.Kind, topLevelKeys(raw.Data), r)
			ev = core.WireEvent{
				Kind: wireKind(raw.Kind),
				Payload: map[string]any{
					"status":  "error",
					"message": "Event serialization failed.",
				},
			}
		}
	}()

	payload := n.buildPayload(raw)

	ev = core.WireEvent{Kind: wireKind(raw.Kind), Payload: payload}
	if len(raw.Meta) > 0 {
		ev.Metadata = n.coerce(raw.Meta).(map[string]any)
	}

	return ev
}

func (n *Normalizer) buildPayload(raw core.RawEvent) map[string]any {
	switch raw.Kind {
	case core.RawChainStart, core.RawChainEnd:
		payload := map[string]any{}
		if raw.Name != "" {
			payload["name"] = raw.Name
		}
		return payload

	case core.RawModelStart:
		payload := map[string]any{}
		if raw.Name != "" {
			payload["name"] = raw.Name
		}
		return payload

	case core.RawModelStream:
		return map[string]any{"chunk": n.chunkPayload(raw)}

	case core.RawModelEnd:
		payload := map[string]any{}
		if raw.Name != "" {
			payload["name"] = raw.Name
		}
		if raw.Data != nil {
			payload["output"] = n.coerce(raw.Data)
		}
		return payload

	case core.RawToolStart:
		payload := map[string]any{
			"name":   raw.Name,
			"status": core.ToolStatusRunning,
		}
		if raw.Data != nil {
			payload["input"] = n.coerce(raw.Data)
		}
		return payload

	case core.RawToolEnd:
		payload := map[string]any{
			"name":   raw.Name,
			"status": core.ToolStatusCompleted,
		}
		if raw.Data != nil {
			payload["output"] = n.coerce(raw.Data)
		}
		return payload

	case core.RawMessage:
		// Complete messages surface as model end output.
		return map[string]any{"output": n.coerce(raw.Data)}

	case core.RawError:
		return map[string]any{"error": errorDescription(raw.Data)}

	case core.RawInterrupt:
		// HITL gates are relayed transparently as a named unit of work.
		return map[string]any{"name": "human_review"}

	default:
		payload := map[string]any{}
		if raw.Name != "" {
			payload["name"] = raw.Name
		}
		if raw.Data != nil {
			payload["input"] = n.coerce(raw.Data)
		}
		return payload
	}
}

// chunkPayload builds the {content, id?, additional_kwargs?,
// response_metadata?} chunk for a model token event. Absent optional fields
// are omitted, not null-filled.
func (n *Normalizer) chunkPayload(raw core.RawEvent) map[string]any {
	chunk := map[string]any{}

	switch data := raw.Data.(type) {
	case string:
		chunk["content"] = data
	case core.Message:
		chunk["content"] = n.coerce(data.Content)
		if data.ID != "" {
			chunk["id"] = data.ID
		}
		if len(data.AdditionalKwargs) > 0 {
			chunk["additional_kwargs"] = n.coerce(data.AdditionalKwargs)
		}
		if len(data.ResponseMetadata) > 0 {
			chunk["response_metadata"] = n.coerce(data.ResponseMetadata)
		}
	default:
		chunk["content"] = n.coerce(raw.Data)
	}

	if raw.ID != "" {
		if _, ok := chunk["id"]; !ok {
			chunk["id"] = raw.ID
		}
	}

	return chunk
}

// coerce converts an arbitrary value into a JSON-safe tree. It covers
// exactly four shapes (primitive, mapping, sequence, opaque fallback) plus
// the two recognized rich values (Message, Send) and terminates because
// every recursive call descends into a strictly smaller value.
func (n *Normalizer) coerce(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case error:
		return val.Error()
	case core.Message:
		return n.coerceMessage(val)
	case *core.Message:
		if val == nil {
			return nil
		}
		return n.coerceMessage(*val)
	case core.Send:
		return map[string]any{
			"type": "send",
			"node": val.Node,
			"arg":  n.coerce(val.Arg),
		}
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = n.coerce(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = n.coerce(item)
		}
		return out
	}

	// Generic mappings and sequences reached via reflection; anything else
	// degrades to a bounded summary.
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		for _, key := range rv.MapKeys() {
			out[fmt.Sprint(key.Interface())] = n.coerce(rv.MapIndex(key).Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = n.coerce(rv.Index(i).Interface())
		}
		return out
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return n.coerce(rv.Elem().Interface())
	default:
		return opaqueSummary(v)
	}
}

// coerceMessage maps a role-tagged message to its canonical payload shape.
// Optional fields are omitted when empty.
func (n *Normalizer) coerceMessage(m core.Message) map[string]any {
	out := map[string]any{
		"type":    strings.ToLower(m.Role),
		"content": n.coerce(m.Content),
	}
	if m.ID != "" {
		out["id"] = m.ID
	}
	if m.Name != "" {
		out["name"] = m.Name
	}
	if len(m.AdditionalKwargs) > 0 {
		out["additional_kwargs"] = n.coerce(m.AdditionalKwargs)
	}
	if len(m.ResponseMetadata) > 0 {
		out["response_metadata"] = n.coerce(m.ResponseMetadata)
	}
	return out
}

// opaqueSummary renders an unrecognized object as its type name plus a
// truncated string representation.
func opaqueSummary(v any) string {
	s := fmt.Sprint(v)
	if len(s) > maxSummaryLen {
		s = s[:maxSummaryLen]
	}
	return fmt.Sprintf("<%T: %s>", v, s)
}

// errorDescription extracts a human readable description from an error
// event's payload.
func errorDescription(data any) string {
	switch d := data.(type) {
	case string:
		return d
	case error:
		return d.Error()
	default:
		return fmt.Sprint(d)
	}
}

// wireKind maps a raw kind to the wire kind the normalized event carries.
func wireKind(kind core.RawKind) core.WireKind {
	switch kind {
	case core.RawChainStart, core.RawInterrupt:
		return core.WireChainStart
	case core.RawChainEnd:
		return core.WireChainEnd
	case core.RawModelStart:
		return core.WireChatModelStart
	case core.RawModelStream:
		return core.WireChatModelStream
	case core.RawModelEnd, core.RawMessage:
		return core.WireChatModelEnd
	case core.RawToolStart, core.RawToolEnd:
		return core.WireToolCall
	case core.RawError:
		return core.WireError
	default:
		return core.WireChainStart
	}
}

// topLevelKeys lists the top-level keys of a mapping payload for failure
// logging without leaking the payload itself.
func topLevelKeys(data any) []string {
	m, ok := data.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
