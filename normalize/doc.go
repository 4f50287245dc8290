// Package normalize converts raw engine events into canonical wire events.
//
// The transform is pure and total: it performs no I/O, maps every raw event
// to exactly one wire event, and never panics. Payload values are coerced
// into JSON-safe trees (string-keyed maps, slices, primitives); values the
// coercion does not recognize degrade to a bounded string summary rather
// than failing the event.
package normalize
