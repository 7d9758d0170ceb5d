package progression

import (
	"slices"

	"github.com/cory-johannsen/advancement/internal/game/catalog"
	"github.com/cory-johannsen/advancement/internal/game/progress"
)

// Budget returns how many ability points a skill grants by level.
func (e *Engine) Budget(level int) int {
	n := 0
	for _, t := range e.cfg.Thresholds {
		if t > level {
			break
		}
		n++
	}
	return n
}

// PointsSpent counts the non-zero-level abilities of skillID purchased in
// the active slot.
func (e *Engine) PointsSpent(p *progress.Player, skillID string) int {
	s, err := e.skill(skillID)
	if err != nil || !playable(p) {
		return 0
	}
	return spentIn(p, s, p.CurrentSet)
}

func spentIn(p *progress.Player, s *catalog.Skill, slot int) int {
	n := 0
	for _, a := range s.Assignments {
		if a.RequiredLevel > 0 && p.Owns(a.Ability, slot) {
			n++
		}
	}
	return n
}

// allowance is the most a slot may have spent: the budget at the current
// level plus a dead-end point already consumed in that slot.
func (e *Engine) allowance(p *progress.Player, s *catalog.Skill, slot int) int {
	n := e.Budget(p.SkillLevel(s.ID))
	if sp, ok := p.LookupSkill(s.ID); ok && sp.DeadEndGrant[slot] {
		n++
	}
	return n
}

// PointsAvailable returns how many points the player may still spend in
// skillID from the active slot, including the dead-end point.
func (e *Engine) PointsAvailable(p *progress.Player, skillID string) int {
	s, err := e.skill(skillID)
	if err != nil || !playable(p) {
		return 0
	}
	avail := max(0, e.allowance(p, s, p.CurrentSet)-spentIn(p, s, p.CurrentSet))
	if avail == 0 && e.deadEndApplies(p, s) {
		return 1
	}
	return avail
}

// deadEndApplies reports whether the one extra point is due: the player has
// passed the checkpoint, is not at a cap, has spent less than the next cap
// would allow, has not already used the grant in this slot, and owns no
// ability of the skill that can still award experience.
func (e *Engine) deadEndApplies(p *progress.Player, s *catalog.Skill) bool {
	level := p.SkillLevel(s.ID)
	if level < e.cfg.DeadEndCheckpoint || e.isAnyCap(p, s) {
		return false
	}
	if sp, ok := p.LookupSkill(s.ID); ok && sp.DeadEndGrant[p.CurrentSet] {
		return false
	}
	if spentIn(p, s, p.CurrentSet) >= e.Budget(e.nextCapLevel(p, s)) {
		return false
	}
	return e.isDeadEnd(p, s)
}

// IsDeadEnd reports whether no owned ability of skillID can still award experience.
func (e *Engine) IsDeadEnd(p *progress.Player, skillID string) bool {
	s, err := e.skill(skillID)
	if err != nil || !playable(p) {
		return false
	}
	return e.isDeadEnd(p, s)
}

func (e *Engine) isDeadEnd(p *progress.Player, s *catalog.Skill) bool {
	for _, a := range s.Assignments {
		if e.canGainFrom(p, s, a) {
			return false
		}
	}
	return true
}

// IsAnyCap reports whether skillID is sitting on a cap that blocks gain.
func (e *Engine) IsAnyCap(p *progress.Player, skillID string) bool {
	s, err := e.skill(skillID)
	if err != nil || !playable(p) {
		return true
	}
	return e.isAnyCap(p, s)
}

func (e *Engine) isAnyCap(p *progress.Player, s *catalog.Skill) bool {
	level := p.SkillLevel(s.ID)
	if level == 0 {
		return !canGrowFromZero(p, s)
	}
	return isTierCap(s, level)
}

func isTierCap(s *catalog.Skill, level int) bool {
	return level >= s.MaxLevel || slices.Contains([]int{catalog.BasicSkillCap, catalog.SpecialtySkillCap, catalog.MaxSkillCap}, level)
}

func canGrowFromZero(p *progress.Player, s *catalog.Skill) bool {
	return s.Basic || p.CanGainNewSkills
}

// NextCapLevel returns the next cap the skill will stop at.
func (e *Engine) NextCapLevel(p *progress.Player, skillID string) int {
	s, err := e.skill(skillID)
	if err != nil {
		return 0
	}
	return e.nextCapLevel(p, s)
}

func (e *Engine) nextCapLevel(p *progress.Player, s *catalog.Skill) int {
	level := p.SkillLevel(s.ID)
	switch {
	case level <= catalog.BasicSkillCap && catalog.BasicSkillCap < s.MaxLevel:
		return catalog.BasicSkillCap
	case level <= catalog.SpecialtySkillCap && catalog.SpecialtySkillCap < s.MaxLevel:
		return catalog.SpecialtySkillCap
	default:
		return s.MaxLevel
	}
}

// CanGainFrom reports whether abilityID may still award experience to p.
func (e *Engine) CanGainFrom(p *progress.Player, abilityID string) bool {
	if !playable(p) {
		return false
	}
	pl, ok := e.catalog.Current().Placement(abilityID)
	if !ok || pl.Skill.Unreleased {
		return false
	}
	return e.canGainFrom(p, pl.Skill, pl.Assignment)
}

// canGainFrom requires ownership in the active slot, room below the skill's
// maximum and below the per-ability ceiling, and that the ability was not
// learned beneath a tier the skill has already passed.
func (e *Engine) canGainFrom(p *progress.Player, s *catalog.Skill, a catalog.Assignment) bool {
	if !p.OwnsActive(a.Ability) {
		return false
	}
	level := p.SkillLevel(s.ID)
	if level >= s.MaxLevel {
		return false
	}
	if o, ok := p.LookupAbility(a.Ability); ok && o.LevelsGained >= GainsPerAbility {
		return false
	}
	for _, tier := range []int{catalog.BasicSkillCap, catalog.SpecialtySkillCap, catalog.MaxSkillCap} {
		if a.RequiredLevel < tier && level >= tier {
			return false
		}
	}
	return true
}

// settleGrants forgets a consumed dead-end point once the budget alone
// covers what the slot has spent.
func (e *Engine) settleGrants(p *progress.Player, s *catalog.Skill) {
	sp, ok := p.LookupSkill(s.ID)
	if !ok {
		return
	}
	budget := e.Budget(sp.Level)
	for slot := range sp.DeadEndGrant {
		if sp.DeadEndGrant[slot] && spentIn(p, s, slot) <= budget {
			sp.DeadEndGrant[slot] = false
		}
	}
}
