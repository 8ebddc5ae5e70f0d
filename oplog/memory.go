package oplog

import (
	"context"
	"sort"
	"sync"

	"github.com/abhissng/conduit/blame"
)

type memoryEntry struct {
	rec       *Record
	published bool
	attempts  int
	lastError string
}

// MemoryStore keeps the log in process. Mutations run under the store lock,
// which makes them atomic with the append.
type MemoryStore struct {
	mu       sync.Mutex
	sequence uint64
	entries  map[string]*memoryEntry
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]*memoryEntry{}}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Append(ctx context.Context, rec *Record, mutate MutationFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mutate != nil {
		if err := mutate(ctx, nil); err != nil {
			return err
		}
	}
	s.sequence++
	rec.Sequence = s.sequence
	stored := *rec
	s.entries[rec.ID] = &memoryEntry{rec: &stored}
	return nil
}

func (s *MemoryStore) Pending(_ context.Context, limit int) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Record, 0)
	for _, e := range s.entries {
		if !e.published {
			rec := *e.rec
			out = append(out, &rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkPublished(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return blame.NotFound("operation_log", id)
	}
	e.published = true
	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, id string, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return blame.NotFound("operation_log", id)
	}
	e.attempts++
	if cause != nil {
		e.lastError = cause.Error()
	}
	return nil
}

// Attempts returns the failed replication attempts recorded for id.
func (s *MemoryStore) Attempts(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		return e.attempts
	}
	return 0
}

// Len returns the number of records appended.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
