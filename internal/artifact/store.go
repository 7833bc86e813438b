package artifact

import (
	"sync"

	"github.com/blueprintlabs/blueprint/internal/delta"
)

// Store owns the Artifact state for one client session. All mutation
// goes through the reducer; consumers read snapshots or subscribe for
// change notification. This replaces ambient shared state with one
// explicit owner.
//
// Store is safe for concurrent use. Exactly one goroutine should feed
// deltas; any number may read or subscribe.
type Store struct {
	mu      sync.Mutex
	reducer *Reducer
	nextSub int
	subs    map[int]func(Artifact)
}

// NewStore returns a store over a fresh reducer.
func NewStore(reveal Reveal) *Store {
	return &Store{
		reducer: NewReducer(reveal),
		subs:    make(map[int]func(Artifact)),
	}
}

// Consume applies one delta and notifies subscribers with the resulting
// snapshot.
func (s *Store) Consume(d delta.Delta) {
	s.mu.Lock()
	s.reducer.Apply(d)
	snapshot := s.reducer.Artifact()
	subs := s.snapshotSubs()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

// Fold applies every unseen delta of seq in order, notifying once with
// the final state. Re-delivered prefixes are no-ops.
func (s *Store) Fold(seq []delta.Delta) {
	s.mu.Lock()
	before := s.reducer.next
	s.reducer.Fold(seq)
	changed := s.reducer.next != before
	snapshot := s.reducer.Artifact()
	subs := s.snapshotSubs()
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range subs {
		fn(snapshot)
	}
}

// snapshotSubs copies the subscriber list; callers must hold mu.
func (s *Store) snapshotSubs() []func(Artifact) {
	subs := make([]func(Artifact), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return subs
}

// Artifact returns the current snapshot.
func (s *Store) Artifact() Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reducer.Artifact()
}

// Suggestions returns a copy of the accumulated suggestion list.
func (s *Store) Suggestions() []delta.Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]delta.Suggestion, len(s.reducer.suggestions))
	copy(out, s.reducer.suggestions)
	return out
}

// Subscribe registers fn for change notification and returns an
// unsubscribe function. fn runs on the consuming goroutine; keep it
// cheap.
func (s *Store) Subscribe(fn func(Artifact)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}
