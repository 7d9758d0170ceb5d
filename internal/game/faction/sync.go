package faction

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/advancement/internal/game/catalog"
	"github.com/cory-johannsen/advancement/internal/game/progress"
)

// CatalogSource yields the catalog currently in effect.
type CatalogSource interface {
	Current() *catalog.Catalog
}

// Synchronizer applies a member's active-slot abilities to their faction's
// technology counters. Register and Deregister must be called in strict
// pairs around any change to the active slot; Bracket does both.
type Synchronizer struct {
	factions *Registry
	catalog  CatalogSource
	logger   *zap.Logger
}

// NewSynchronizer creates a Synchronizer over factions.
//
// Precondition: all arguments must be non-nil.
func NewSynchronizer(factions *Registry, cat CatalogSource, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{factions: factions, catalog: cat, logger: logger}
}

// Register adds p's active abilities to its faction's counters.
// No-op unless p is an affiliated player who is currently playing.
func (s *Synchronizer) Register(p *progress.Player) {
	s.apply(p, +1)
}

// Deregister removes p's active abilities from its faction's counters.
// No-op unless p is an affiliated player who is currently playing.
func (s *Synchronizer) Deregister(p *progress.Player) {
	s.apply(p, -1)
}

// Bracket deregisters p, runs fn, and registers p again.
func (s *Synchronizer) Bracket(p *progress.Player, fn func()) {
	s.Deregister(p)
	defer s.Register(p)
	fn()
}

func (s *Synchronizer) apply(p *progress.Player, delta int) {
	if p == nil || p.IsNPC || !p.Playing || !p.Affiliated() {
		return
	}
	f, err := s.factions.Get(p.FactionID)
	if err != nil {
		s.logger.Warn("player references unknown faction",
			zap.Int64("player_id", p.ID),
			zap.Stringer("faction_id", p.FactionID),
		)
		return
	}
	cat := s.catalog.Current()
	for _, id := range p.ActiveAbilities() {
		ab, ok := cat.Ability(id)
		if !ok || ab.Tech == "" {
			continue
		}
		if n := f.adjust(ab.Tech, delta); n < 0 {
			s.logger.Error("technology counter underflow",
				zap.Stringer("faction_id", f.ID),
				zap.String("tech", string(ab.Tech)),
				zap.Int("value", n),
			)
		}
	}
}
