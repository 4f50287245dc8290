package checkpoint

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore is a volatile Store implementation keeping records in a
// process local map. It is safe for concurrent access and best suited for
// tests or ephemeral demo servers.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string]Record // threadID -> channel -> record
}

// NewInMemoryStore constructs an empty in-memory checkpoint store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]map[string]Record)}
}

// Put writes or replaces the record for (threadID, channel).
func (s *InMemoryStore) Put(_ context.Context, threadID, channel string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chans, ok := s.records[threadID]
	if !ok {
		chans = make(map[string]Record)
		s.records[threadID] = chans
	}
	chans[channel] = Record{
		ThreadID:  threadID,
		Channel:   channel,
		Payload:   append([]byte(nil), payload...),
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

// Get returns the record for (threadID, channel) or ErrNotFound.
func (s *InMemoryStore) Get(_ context.Context, threadID, channel string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.records[threadID][channel]; ok {
		out := rec
		out.Payload = append([]byte(nil), rec.Payload...)
		return &out, nil
	}
	return nil, ErrNotFound
}

// List returns all records for a thread ordered by channel.
func (s *InMemoryStore) List(_ context.Context, threadID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chans := s.records[threadID]
	out := make([]Record, 0, len(chans))
	for _, rec := range chans {
		rec.Payload = append([]byte(nil), rec.Payload...)
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out, nil
}

// DeleteChannel removes every record carrying the given channel tag.
func (s *InMemoryStore) DeleteChannel(_ context.Context, channel string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for threadID, chans := range s.records {
		if _, ok := chans[channel]; ok {
			delete(chans, channel)
			n++
		}
		if len(chans) == 0 {
			delete(s.records, threadID)
		}
	}
	return n, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
