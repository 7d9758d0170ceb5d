package progression

import (
	"fmt"

	"github.com/cory-johannsen/advancement/internal/game/catalog"
	"github.com/cory-johannsen/advancement/internal/game/progress"
	"github.com/cory-johannsen/advancement/internal/observability"
)

// Purchase buys abilityID into the active slot.
//
// Precondition: p is a player character.
// Postcondition: on success the ability is owned in the active slot and the
// faction counters reflect it; on error nothing changed.
func (e *Engine) Purchase(p *progress.Player, abilityID string) error {
	if !playable(p) {
		return ErrNPC
	}
	cat := e.catalog.Current()
	ab, ok := cat.AbilityByID(abilityID)
	if !ok {
		return ErrUnknownAbility
	}
	pl, ok := cat.Placement(ab.ID)
	if !ok || pl.Skill.Unreleased {
		return ErrNotInSkill
	}
	if p.OwnsActive(ab.ID) {
		return ErrAlreadyOwned
	}
	s, req := pl.Skill, pl.Assignment.RequiredLevel
	costs := req > 0 && !p.Immortal
	if costs && e.PointsAvailable(p, s.ID) < 1 {
		return ErrNoPoints
	}
	if p.SkillLevel(s.ID) < req {
		return fmt.Errorf("%w: need %d in %s", ErrLevelTooLow, req, s.Name)
	}
	if pre := pl.Assignment.Prereq; pre != "" && !p.OwnsActive(pre) {
		return fmt.Errorf("%w: buy %s first", ErrMissingPrereq, pre)
	}

	usesDeadEnd := costs && spentIn(p, s, p.CurrentSet) >= e.allowance(p, s, p.CurrentSet)
	e.bracket(p, func() {
		p.Ability(ab.ID).Purchased[p.CurrentSet] = true
	})
	if usesDeadEnd {
		p.Skill(s.ID).DeadEndGrant[p.CurrentSet] = true
	}

	e.logger.Info("ability purchased",
		observability.Player(p.ID),
		observability.Skill(s.ID),
		observability.Ability(ab.ID),
	)
	e.save(p)
	return nil
}

// Sell removes abilityID from the active slot after running the sale contract.
// Only skill abilities bought with points can be sold, and never while an
// ability that requires them is still owned in the active slot.
//
// Postcondition: on error nothing changed and the sale contract did not run.
func (e *Engine) Sell(p *progress.Player, abilityID string) error {
	if !playable(p) {
		return ErrNPC
	}
	cat := e.catalog.Current()
	if _, ok := cat.Ability(abilityID); !ok {
		return ErrUnknownAbility
	}
	if !p.OwnsActive(abilityID) {
		return ErrNotOwned
	}
	pl, ok := cat.Placement(abilityID)
	if !ok {
		return ErrNotInSkill
	}
	if pl.Assignment.RequiredLevel == 0 {
		return ErrFreeAbility
	}
	for _, child := range cat.Children(abilityID) {
		if p.OwnsActive(child) {
			return fmt.Errorf("%w: sell %s first", ErrHasDependents, child)
		}
	}

	e.sales.OnAbilityDeactivated(p, abilityID)
	e.bracket(p, func() {
		p.Ability(abilityID).Purchased[p.CurrentSet] = false
	})
	e.settleGrants(p, pl.Skill)

	e.logger.Info("ability sold", observability.Player(p.ID), observability.Ability(abilityID))
	e.save(p)
	return nil
}

// Reset spends a free reset to refund every point spent in skillID from the
// active slot. Immortals need no reset token.
func (e *Engine) Reset(p *progress.Player, skillID string) error {
	if !playable(p) {
		return ErrNPC
	}
	s, err := e.skill(skillID)
	if err != nil {
		return err
	}
	sp := p.Skill(s.ID)
	if !p.Immortal && sp.Resets <= 0 {
		return ErrNoResets
	}
	if sp.Resets > 0 {
		sp.Resets--
	}
	e.clearAbilities(p, s, p.CurrentSet)
	e.save(p)
	return nil
}

// DropLevels returns the levels skillID may currently be dropped to.
func (e *Engine) DropLevels(p *progress.Player, skillID string) []int {
	s, err := e.skill(skillID)
	if err != nil || !playable(p) {
		return nil
	}
	return dropLevels(s, p.SkillLevel(s.ID))
}

func dropLevels(s *catalog.Skill, current int) []int {
	var out []int
	for _, l := range []int{s.MinDropLevel, catalog.BasicSkillCap, catalog.SpecialtySkillCap} {
		if l >= s.MinDropLevel && l < current && (len(out) == 0 || out[len(out)-1] < l) {
			out = append(out, l)
		}
	}
	return out
}

// Drop voluntarily lowers skillID to level and refunds the skill's points
// in the active slot.
func (e *Engine) Drop(p *progress.Player, skillID string, level int) error {
	if !playable(p) {
		return ErrNPC
	}
	s, err := e.skill(skillID)
	if err != nil {
		return err
	}
	allowed := false
	for _, l := range dropLevels(s, p.SkillLevel(s.ID)) {
		allowed = allowed || l == level
	}
	if !allowed {
		return fmt.Errorf("%w: %s may drop to %v", ErrInvalidDropLevel, s.Name, dropLevels(s, p.SkillLevel(s.ID)))
	}
	e.setSkill(p, s, level)
	e.clearAbilities(p, s, p.CurrentSet)
	e.save(p)
	return nil
}

// ToggleNoSkill flips the opt-out flag on skillID and returns the new state.
func (e *Engine) ToggleNoSkill(p *progress.Player, skillID string) (bool, error) {
	if !playable(p) {
		return false, ErrNPC
	}
	s, err := e.skill(skillID)
	if err != nil {
		return false, err
	}
	sp := p.Skill(s.ID)
	sp.NoSkill = !sp.NoSkill
	e.save(p)
	return sp.NoSkill, nil
}

// SkillsPerClass is how many skills may rise above the specialty cap.
const SkillsPerClass = 2

// Specialize lifts a skill sitting on the basic or specialty cap by one
// level so it can keep growing, within the specialization limits.
func (e *Engine) Specialize(p *progress.Player, skillID string) error {
	if !playable(p) {
		return ErrNPC
	}
	s, err := e.skill(skillID)
	if err != nil {
		return err
	}
	level := p.SkillLevel(s.ID)
	if (level != catalog.BasicSkillCap && level != catalog.SpecialtySkillCap) || level >= s.MaxLevel {
		return ErrNotAtCap
	}

	limit := e.cfg.SpecialtyAllowed
	if p.CanGetBonusSkills {
		limit += e.cfg.BonusSpecialtyAllowed
	}
	if level == catalog.SpecialtySkillCap {
		limit = SkillsPerClass
	}
	above := 0
	for _, other := range e.catalog.Current().Skills() {
		if p.SkillLevel(other.ID) > level {
			above++
		}
	}
	if above+1 > limit {
		return fmt.Errorf("%w: at most %d skill%s above %d", ErrSpecialtyLimit, limit, plural(limit), level)
	}

	e.setSkill(p, s, level+1)
	e.save(p)
	return nil
}
