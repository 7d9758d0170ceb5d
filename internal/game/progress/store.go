package progress

import (
	"errors"
	"sort"
	"sync"
)

// ErrNPC is returned when a caller tries to store a record for a
// non-player character.
var ErrNPC = errors.New("progress: non-player characters have no progression record")

// Store indexes loaded player records by id.
// All methods are safe for concurrent use; the records themselves are
// mutated only by the progression engine under the service lock.
type Store struct {
	mu      sync.RWMutex
	players map[int64]*Player
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{players: make(map[int64]*Player)}
}

// Get returns the record for id.
func (s *Store) Get(id int64) (*Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	return p, ok
}

// Put inserts or replaces a record loaded from storage.
//
// Precondition: p must be non-nil.
func (s *Store) Put(p *Player) error {
	if p.IsNPC {
		return ErrNPC
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[p.ID] = p
	return nil
}

// Remove drops the record for id.
func (s *Store) Remove(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, id)
}

// All returns a snapshot of every record ordered by id.
func (s *Store) All() []*Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
