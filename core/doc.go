// Package core defines the shared vocabulary of the relay: raw events as
// produced by an execution engine, canonical wire events as delivered to
// clients, the per-run session record, and the narrow interfaces the
// streaming pipeline depends on (Engine, Sink, checkpoint access).
//
// The package is deliberately free of I/O. Transports, stores and engine
// adapters live in their own packages and depend on core, never the other
// way around.
package core
