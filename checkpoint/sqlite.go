package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a Store backed by a local SQLite database. WAL mode keeps
// reads cheap while the persistence layer writes.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize checkpoint schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS checkpoints (
			thread_id TEXT NOT NULL,
			channel TEXT NOT NULL,
			payload BLOB,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (thread_id, channel)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_checkpoints_channel ON checkpoints(channel)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Put writes or replaces the record for (threadID, channel).
func (s *SQLiteStore) Put(ctx context.Context, threadID, channel string, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (thread_id, channel, payload, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (thread_id, channel) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		threadID, channel, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to put checkpoint: %w", err)
	}
	return nil
}

// Get returns the record for (threadID, channel) or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, threadID, channel string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT thread_id, channel, payload, updated_at FROM checkpoints WHERE thread_id = ? AND channel = ?`,
		threadID, channel)

	var rec Record
	if err := row.Scan(&rec.ThreadID, &rec.Channel, &rec.Payload, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return &rec, nil
}

// List returns all records for a thread ordered by channel.
func (s *SQLiteStore) List(ctx context.Context, threadID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT thread_id, channel, payload, updated_at FROM checkpoints WHERE thread_id = ? ORDER BY channel`,
		threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ThreadID, &rec.Channel, &rec.Payload, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteChannel removes every record carrying the given channel tag.
func (s *SQLiteStore) DeleteChannel(ctx context.Context, channel string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE channel = ?`, channel)
	if err != nil {
		return 0, fmt.Errorf("failed to delete channel records: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }
