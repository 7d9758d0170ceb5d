package condition

import (
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/advancement/internal/game/progress"
	"github.com/cory-johannsen/advancement/internal/observability"
)

// Notifier delivers a message to a player.
type Notifier interface {
	Notify(playerID int64, msg string)
}

// StandingEffects owns every online player's ActiveSet and ends the effects
// an ability sustains when that ability leaves the active loadout.
type StandingEffects struct {
	mu     sync.Mutex
	defs   *Registry
	sets   map[int64]*ActiveSet
	notify Notifier
	logger *zap.Logger
}

// NewStandingEffects creates a StandingEffects over defs. notify may be nil.
func NewStandingEffects(defs *Registry, notify Notifier, logger *zap.Logger) *StandingEffects {
	return &StandingEffects{defs: defs, sets: make(map[int64]*ActiveSet), notify: notify, logger: logger}
}

// Apply starts effect id on playerID.
func (s *StandingEffects) Apply(playerID int64, id string, stacks, ticks int) error {
	def, ok := s.defs.Get(id)
	if !ok {
		return &UnknownEffectError{ID: id}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(playerID).Apply(def, stacks, ticks)
}

// Has reports whether playerID currently has effect id.
func (s *StandingEffects) Has(playerID int64, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[playerID]
	return ok && set.Has(id)
}

// Restricts reports whether one of playerID's effects forbids abilityID,
// e.g. a morph that cannot ride.
func (s *StandingEffects) Restricts(playerID int64, abilityID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[playerID]
	return ok && set.IsAbilityRestricted(abilityID)
}

// Tick advances every player's timed effects and returns how many expired.
func (s *StandingEffects) Tick() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, set := range s.sets {
		n += len(set.Tick())
	}
	return n
}

// Forget drops playerID's effects, e.g. on logout.
func (s *StandingEffects) Forget(playerID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets, playerID)
}

// OnAbilityDeactivated ends every effect sustained by abilityID. It is a
// no-op when the player has none.
func (s *StandingEffects) OnAbilityDeactivated(p *progress.Player, abilityID string) {
	s.mu.Lock()
	var ended []*Def
	if set, ok := s.sets[p.ID]; ok {
		ended = set.EndForAbility(abilityID)
	}
	s.mu.Unlock()

	for _, d := range ended {
		s.logger.Debug("standing effect ended",
			observability.Player(p.ID),
			observability.Ability(abilityID),
			zap.String("effect", d.ID),
		)
		if s.notify != nil && d.EndMessage != "" {
			s.notify.Notify(p.ID, d.EndMessage)
		}
	}
}

func (s *StandingEffects) setLocked(playerID int64) *ActiveSet {
	set, ok := s.sets[playerID]
	if !ok {
		set = NewActiveSet()
		s.sets[playerID] = set
	}
	return set
}

// UnknownEffectError is returned when applying an effect with no definition.
type UnknownEffectError struct {
	ID string
}

func (e *UnknownEffectError) Error() string {
	return "unknown standing effect " + e.ID
}
