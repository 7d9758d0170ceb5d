// Package progress holds per-player skill and ability records. It has no
// business rules: the progression engine decides what changes, this package
// only stores it.
package progress

import (
	"sort"

	"github.com/google/uuid"
)

// NumSlots is the number of ability loadouts a player carries.
const NumSlots = 2

// MaxSkillResets caps the number of unused free resets per skill.
const MaxSkillResets = 10

// SkillProgress is a player's standing in one skill.
type SkillProgress struct {
	Level   int
	Exp     float64 // accumulator in [0, 100); zeroed on every level change
	Resets  int
	NoSkill bool
	// DeadEndGrant marks, per slot, that the one extra point granted at a
	// dead end has been spent and still counts toward the allowance.
	DeadEndGrant [NumSlots]bool
}

// Ownership is a player's standing in one ability.
type Ownership struct {
	Purchased    [NumSlots]bool
	LevelsGained int
}

// Any reports whether the ability is purchased in at least one slot.
func (o *Ownership) Any() bool {
	for _, p := range o.Purchased {
		if p {
			return true
		}
	}
	return false
}

// Player is the progression record of one player character.
type Player struct {
	ID        int64
	AccountID int64
	Name      string
	FactionID uuid.UUID

	IsNPC             bool
	Approved          bool
	Immortal          bool
	CanGainNewSkills  bool
	CanGetBonusSkills bool
	BonusExpTrait     bool
	DailyBonusExp     int

	// CurrentSet is the active loadout, 0 or 1.
	CurrentSet int
	// Playing is true while the player is online and in the world.
	Playing bool

	skills    map[string]*SkillProgress
	abilities map[string]*Ownership
}

// NewPlayer returns an empty record.
//
// Postcondition: the player may gain new skills and has no progress.
func NewPlayer(id int64, name string) *Player {
	return &Player{
		ID:               id,
		Name:             name,
		CanGainNewSkills: true,
		skills:           make(map[string]*SkillProgress),
		abilities:        make(map[string]*Ownership),
	}
}

// Skill returns the progress entry for skillID, creating it on first touch.
func (p *Player) Skill(skillID string) *SkillProgress {
	sp, ok := p.skills[skillID]
	if !ok {
		sp = &SkillProgress{}
		p.skills[skillID] = sp
	}
	return sp
}

// LookupSkill returns the progress entry without creating one.
func (p *Player) LookupSkill(skillID string) (*SkillProgress, bool) {
	sp, ok := p.skills[skillID]
	return sp, ok
}

// SkillLevel returns the level in skillID; untouched skills are 0.
func (p *Player) SkillLevel(skillID string) int {
	if sp, ok := p.skills[skillID]; ok {
		return sp.Level
	}
	return 0
}

// Ability returns the ownership entry for abilityID, creating it on first touch.
func (p *Player) Ability(abilityID string) *Ownership {
	o, ok := p.abilities[abilityID]
	if !ok {
		o = &Ownership{}
		p.abilities[abilityID] = o
	}
	return o
}

// LookupAbility returns the ownership entry without creating one.
func (p *Player) LookupAbility(abilityID string) (*Ownership, bool) {
	o, ok := p.abilities[abilityID]
	return o, ok
}

// Owns reports whether abilityID is purchased in slot.
func (p *Player) Owns(abilityID string, slot int) bool {
	o, ok := p.abilities[abilityID]
	return ok && o.Purchased[slot]
}

// OwnsActive reports whether abilityID is purchased in the active slot.
func (p *Player) OwnsActive(abilityID string) bool {
	return p.Owns(abilityID, p.CurrentSet)
}

// Affiliated reports whether the player belongs to a faction.
func (p *Player) Affiliated() bool {
	return p.FactionID != uuid.Nil
}

// SkillIDs returns the ids of every touched skill, sorted.
func (p *Player) SkillIDs() []string {
	return sortedKeys(p.skills)
}

// AbilityIDs returns the ids of every touched ability, sorted.
func (p *Player) AbilityIDs() []string {
	return sortedKeys(p.abilities)
}

// ActiveAbilities returns the sorted ids of abilities purchased in the active slot.
func (p *Player) ActiveAbilities() []string {
	var out []string
	for _, id := range p.AbilityIDs() {
		if p.abilities[id].Purchased[p.CurrentSet] {
			out = append(out, id)
		}
	}
	return out
}

// Clone returns a deep copy, used to snapshot a record before saving it
// off the simulation goroutine.
func (p *Player) Clone() *Player {
	cp := *p
	cp.skills = make(map[string]*SkillProgress, len(p.skills))
	for k, v := range p.skills {
		sv := *v
		cp.skills[k] = &sv
	}
	cp.abilities = make(map[string]*Ownership, len(p.abilities))
	for k, v := range p.abilities {
		ov := *v
		cp.abilities[k] = &ov
	}
	return &cp
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
