package document

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps version history in process memory. It backs tests
// and local development where no database is running.
type MemoryStore struct {
	mu          sync.RWMutex
	versions    map[string][]Version
	suggestions map[string][]Suggestion
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		versions:    make(map[string][]Version),
		suggestions: make(map[string][]Suggestion),
	}
}

func (s *MemoryStore) SaveVersion(_ context.Context, v Version) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[v.ID] = append(s.versions[v.ID], v)
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.versions[id]
	if len(history) == 0 {
		return Version{}, ErrNotFound
	}
	return history[len(history)-1], nil
}

func (s *MemoryStore) ListVersions(_ context.Context, id string) ([]Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.versions[id]
	out := make([]Version, len(history))
	copy(out, history)
	return out, nil
}

func (s *MemoryStore) SaveSuggestions(_ context.Context, suggestions []Suggestion) error {
	if len(suggestions) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sug := range suggestions {
		if sug.CreatedAt.IsZero() {
			sug.CreatedAt = time.Now().UTC()
		}
		s.suggestions[sug.DocumentID] = append(s.suggestions[sug.DocumentID], sug)
	}
	return nil
}

func (s *MemoryStore) ListSuggestions(_ context.Context, documentID string) ([]Suggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.suggestions[documentID]
	out := make([]Suggestion, len(list))
	copy(out, list)
	return out, nil
}
