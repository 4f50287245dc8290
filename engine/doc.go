// Package engine provides adapters that expose concrete execution engines
// behind the core.Engine interface. The relay itself treats the engine as
// an opaque asynchronous event source; these adapters exist so a deployment
// has something real to stream from and so tests have a deterministic
// source.
//
// Scripted replays a fixed raw event sequence and is the workhorse of the
// test suite. The anthropic and openai subpackages adapt the respective
// provider SDKs.
package engine
