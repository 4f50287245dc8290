// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug
// any structured logger. It also offers a richer RelayLogger with contextual
// helpers (thread, trace, component) and domain specific logging helpers for
// cancellations, tool calls and checkpoint race suppression.
package logging
