package condition

import (
	"fmt"
	"sort"
)

// Active tracks one standing effect on a character.
type Active struct {
	Def            *Def
	Stacks         int
	TicksRemaining int // -1 = permanent
}

// ActiveSet tracks the standing effects on one character.
// It is not safe for concurrent use; the caller must serialise access.
type ActiveSet struct {
	effects map[string]*Active
}

// NewActiveSet creates an empty ActiveSet.
func NewActiveSet() *ActiveSet {
	return &ActiveSet{effects: make(map[string]*Active)}
}

// Apply adds def or refreshes it when already present.
//
// Precondition: def must not be nil.
// Postcondition: Has(def.ID) is true; stacks never exceed MaxStacks (1 when
// unstackable); TicksRemaining becomes max(existing, ticks).
func (s *ActiveSet) Apply(def *Def, stacks, ticks int) error {
	if def == nil {
		return fmt.Errorf("Apply: def must not be nil")
	}
	limit := def.MaxStacks
	if limit == 0 {
		limit = 1
	}
	if existing, ok := s.effects[def.ID]; ok {
		existing.Stacks = min(limit, existing.Stacks+stacks)
		if ticks < 0 || (existing.TicksRemaining >= 0 && ticks > existing.TicksRemaining) {
			existing.TicksRemaining = ticks
		}
		return nil
	}
	s.effects[def.ID] = &Active{
		Def:            def,
		Stacks:         max(1, min(limit, stacks)),
		TicksRemaining: ticks,
	}
	return nil
}

// Remove deletes the effect with the given ID. Missing effects are ignored.
//
// Postcondition: Has(id) is false.
func (s *ActiveSet) Remove(id string) {
	delete(s.effects, id)
}

// EndForAbility removes every effect sustained by abilityID and returns
// their definitions in ID order.
func (s *ActiveSet) EndForAbility(abilityID string) []*Def {
	var ended []*Def
	for id, a := range s.effects {
		if a.Def.Ability == abilityID {
			ended = append(ended, a.Def)
			delete(s.effects, id)
		}
	}
	sort.Slice(ended, func(i, j int) bool { return ended[i].ID < ended[j].ID })
	return ended
}

// Tick advances timed effects by one tick and returns the IDs that expired.
//
// Postcondition: For every id in the returned slice, Has(id) is false.
func (s *ActiveSet) Tick() []string {
	var expired []string
	for id, a := range s.effects {
		if a.TicksRemaining < 0 {
			continue
		}
		a.TicksRemaining--
		if a.TicksRemaining <= 0 {
			expired = append(expired, id)
			delete(s.effects, id)
		}
	}
	sort.Strings(expired)
	return expired
}

// Has reports whether effect id is active.
func (s *ActiveSet) Has(id string) bool {
	_, ok := s.effects[id]
	return ok
}

// Stacks returns the stack count of effect id, or 0.
func (s *ActiveSet) Stacks(id string) int {
	if a, ok := s.effects[id]; ok {
		return a.Stacks
	}
	return 0
}

// Len returns the number of active effects.
func (s *ActiveSet) Len() int {
	return len(s.effects)
}

// All returns the active effects. The slice is new; the values are shared.
func (s *ActiveSet) All() []*Active {
	out := make([]*Active, 0, len(s.effects))
	for _, a := range s.effects {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Def.ID < out[j].Def.ID })
	return out
}

// Morph returns the active alternate form, if any.
func (s *ActiveSet) Morph() (*Def, bool) {
	for _, a := range s.All() {
		if a.Def.Kind == KindMorph {
			return a.Def, true
		}
	}
	return nil, false
}

// IsAbilityRestricted reports whether any active effect blocks abilityID.
func (s *ActiveSet) IsAbilityRestricted(abilityID string) bool {
	for _, a := range s.effects {
		for _, r := range a.Def.RestrictAbilities {
			if r == abilityID {
				return true
			}
		}
	}
	return false
}
