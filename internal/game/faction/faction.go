// Package faction keeps the faction-wide technology counters that are
// derived from members' active abilities.
package faction

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/cory-johannsen/advancement/internal/game/catalog"
)

// ErrNotFound is returned when a faction id is unknown.
var ErrNotFound = errors.New("faction: not found")

// Faction owns one set of technology counters.
type Faction struct {
	ID   uuid.UUID
	Name string

	mu    sync.Mutex
	techs map[catalog.Tech]int
}

// New creates a Faction with a fresh id and zeroed counters.
func New(name string) *Faction {
	return Restore(uuid.New(), name)
}

// Restore rebuilds a Faction with a known id, e.g. one loaded from storage.
func Restore(id uuid.UUID, name string) *Faction {
	return &Faction{ID: id, Name: name, techs: make(map[catalog.Tech]int)}
}

// Tech returns the counter for t.
func (f *Faction) Tech(t catalog.Tech) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.techs[t]
}

// HasTech reports whether at least one online member provides t.
func (f *Faction) HasTech(t catalog.Tech) bool {
	return f.Tech(t) > 0
}

// Techs returns a copy of every non-zero counter.
func (f *Faction) Techs() map[catalog.Tech]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[catalog.Tech]int, len(f.techs))
	for k, v := range f.techs {
		if v != 0 {
			out[k] = v
		}
	}
	return out
}

func (f *Faction) adjust(t catalog.Tech, delta int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.techs[t] += delta
	return f.techs[t]
}

// Registry indexes factions by id.
// All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	factions map[uuid.UUID]*Faction
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factions: make(map[uuid.UUID]*Faction)}
}

// Add registers f, replacing any faction with the same id.
func (r *Registry) Add(f *Faction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factions[f.ID] = f
}

// Get returns the faction with id.
func (r *Registry) Get(id uuid.UUID) (*Faction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return f, nil
}

// All returns every faction ordered by name.
func (r *Registry) All() []*Faction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Faction, 0, len(r.factions))
	for _, f := range r.factions {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
