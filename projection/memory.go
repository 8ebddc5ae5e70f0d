package projection

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps documents in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]*Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]map[string]*Document)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Get(_ context.Context, collection, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs[collection][id].Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.docs[doc.Collection]
	if coll == nil {
		coll = make(map[string]*Document)
		s.docs[doc.Collection] = coll
	}
	coll[doc.ID] = doc.Clone()
	return nil
}

func (s *MemoryStore) List(_ context.Context, collection string, limit int) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Document, 0, len(s.docs[collection]))
	for _, doc := range s.docs[collection] {
		if !doc.Deleted {
			out = append(out, doc.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
