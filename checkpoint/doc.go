// Package checkpoint handles the relay's interaction with the external
// persistence layer: the RaceGuard that absorbs benign races between
// logical completion and persistence finalization, the narrow Store
// interface the pipeline needs (read and delete, never create), and the
// Sweeper that periodically removes error records mis-written during such
// races. An in-memory store serves tests; the SQLite store serves
// deployments.
package checkpoint
