// Package stream contains the coordinator that drives one run end to end:
// it acquires the engine's event source, normalizes every raw event,
// delivers the result to the transport sink in production order, enforces
// the stream and tool timeout scopes, and converts cancellation,
// disconnects and engine failures into exactly one well-formed terminal
// event. Nothing that happens inside a run escapes the coordinator as an
// unhandled fault.
package stream
