package engine

import "sync"

// RoundStore persists rounds. The engine is the only writer; stores must
// apply each Save atomically so a round is never observed half-written.
type RoundStore interface {
	// Save persists the round, replacing any previous version.
	Save(round *Round) error

	// Load returns the round or ErrRoundNotFound.
	Load(id RoundID) (*Round, error)

	// NextID reserves the next round identifier.
	NextID() (RoundID, error)
}

// MemStore is an in-memory RoundStore.
type MemStore struct {
	mu     sync.Mutex
	rounds map[RoundID]*Round
	nextID RoundID
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{rounds: make(map[RoundID]*Round), nextID: 1}
}

// Save persists the round.
func (s *MemStore) Save(round *Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds[round.ID] = round
	return nil
}

// Load returns the round or ErrRoundNotFound.
func (s *MemStore) Load(id RoundID) (*Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	round, ok := s.rounds[id]
	if !ok {
		return nil, ErrRoundNotFound
	}
	return round, nil
}

// NextID reserves the next round identifier.
func (s *MemStore) NextID() (RoundID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	return id, nil
}
