package checkpoint

import (
	"context"
	"errors"
	"time"
)

// ErrorChannel is the fixed channel tag marking records that the
// persistence layer wrote as error entries. Records on this channel that
// were produced during a post-completion race are garbage and are removed
// by the Sweeper.
const ErrorChannel = "__error__"

// ErrNotFound is returned when no record exists for a thread/channel pair.
var ErrNotFound = errors.New("checkpoint: record not found")

// Record is one persisted checkpoint entry, keyed by thread identifier and
// channel tag.
type Record struct {
	ThreadID  string
	Channel   string
	Payload   []byte
	UpdatedAt time.Time
}

// Store is the narrow per-thread key-value view of the persistence layer
// the pipeline needs. The relay reads and deletes records; it never creates
// them on the hot path (Put exists for the persistence layer itself and for
// tests). The persistence layer guarantees single-writer-per-thread.
type Store interface {
	// Put writes or replaces the record for (threadID, channel).
	Put(ctx context.Context, threadID, channel string, payload []byte) error

	// Get returns the record for (threadID, channel) or ErrNotFound.
	Get(ctx context.Context, threadID, channel string) (*Record, error)

	// List returns all records for a thread ordered by channel.
	List(ctx context.Context, threadID string) ([]Record, error)

	// DeleteChannel removes every record carrying the given channel tag
	// across all threads and reports how many were removed.
	DeleteChannel(ctx context.Context, channel string) (int64, error)

	// Close releases underlying resources.
	Close() error
}
