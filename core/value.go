package core

// Message is a complete role-tagged message object appearing in raw event
// payloads. Optional fields are omitted from the normalized form when
// empty, never null-filled.
type Message struct {
	Role             string
	Content          any
	ID               string
	Name             string
	AdditionalKwargs map[string]any
	ResponseMetadata map[string]any
}

// Send is the engine's internal routing directive instructing dispatch of
// an argument to a named sub-unit. The relay normalizes it to
// {type:"send", node, arg} with arg recursively coerced.
type Send struct {
	Node string
	Arg  any
}
