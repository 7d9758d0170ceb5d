package progression

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/advancement/internal/game/catalog"
	"github.com/cory-johannsen/advancement/internal/game/progress"
	"github.com/cory-johannsen/advancement/internal/observability"
)

// GainAbilityExp credits amount (0-100) of experience earned by using
// abilityID to its parent skill. It returns true when the skill leveled.
//
// Postcondition: on a level-up the ability's LevelsGained grows by one; an
// ineligible ability changes nothing.
func (e *Engine) GainAbilityExp(p *progress.Player, abilityID string, amount float64) bool {
	if !playable(p) {
		return false
	}
	pl, ok := e.catalog.Current().Placement(abilityID)
	if !ok || pl.Skill.Unreleased || !e.canGainFrom(p, pl.Skill, pl.Assignment) {
		return false
	}
	if !e.gainSkillExp(p, pl.Skill, amount) {
		return false
	}
	p.Ability(abilityID).LevelsGained++
	e.save(p)
	return true
}

// GainSkillExp adds experience straight to skillID. It returns true when
// the skill leveled.
func (e *Engine) GainSkillExp(p *progress.Player, skillID string, amount float64) bool {
	if !playable(p) {
		return false
	}
	s, err := e.skill(skillID)
	if err != nil {
		return false
	}
	if !e.gainSkillExp(p, s, amount) {
		return false
	}
	e.save(p)
	return true
}

func (e *Engine) gainSkillExp(p *progress.Player, s *catalog.Skill, amount float64) bool {
	if amount <= 0 || !e.mayGain(p, s) {
		return false
	}
	sp := p.Skill(s.ID)
	if p.DailyBonusExp <= 0 {
		amount /= e.cfg.SlowGainDivisor
	}
	sp.Exp = min(100, sp.Exp+amount)
	if sp.Exp < float64(e.cfg.MinExpToRoll) {
		return false
	}
	if float64(e.roller.Percent("skillup")) > sp.Exp {
		return false
	}
	if p.DailyBonusExp > 0 {
		p.DailyBonusExp--
	}
	return e.gainSkill(p, s, 1)
}

// mayGain applies the player-level gates: opt-out, approval policy and caps.
func (e *Engine) mayGain(p *progress.Player, s *catalog.Skill) bool {
	if sp, ok := p.LookupSkill(s.ID); ok && sp.NoSkill {
		return false
	}
	if e.cfg.RequireApproval && !p.Approved {
		return false
	}
	return !e.isAnyCap(p, s)
}

// Approve lets p gain skills under the approval policy.
func (e *Engine) Approve(p *progress.Player) error {
	if !playable(p) {
		return ErrNPC
	}
	if p.Approved {
		return nil
	}
	p.Approved = true
	e.notify.Notify(p.ID, "You have been approved to advance your skills.")
	e.save(p)
	return nil
}

// GainSkill raises (or, for negative amounts, lowers) skillID by up to
// amount levels. Gains stop at the first cap reached. It returns true when
// the level changed.
func (e *Engine) GainSkill(p *progress.Player, skillID string, amount int) bool {
	if !playable(p) {
		return false
	}
	s, err := e.skill(skillID)
	if err != nil {
		return false
	}
	if !e.gainSkill(p, s, amount) {
		return false
	}
	e.save(p)
	return true
}

func (e *Engine) gainSkill(p *progress.Player, s *catalog.Skill, amount int) bool {
	sp := p.Skill(s.ID)
	if amount > 0 && sp.NoSkill {
		return false
	}
	level := sp.Level
	for ; amount > 0; amount-- {
		if level == 0 && !canGrowFromZero(p, s) {
			break
		}
		if level > 0 && isTierCap(s, level) {
			break
		}
		level++
	}
	for ; amount < 0 && level > 0; amount++ {
		level--
	}
	if level == sp.Level {
		return false
	}
	e.setSkill(p, s, level)
	return true
}

// SetSkill sets skillID to level, clamped to the skill's range, and
// enforces ability levels afterwards.
func (e *Engine) SetSkill(p *progress.Player, skillID string, level int) error {
	if !playable(p) {
		return ErrNPC
	}
	s, err := e.skill(skillID)
	if err != nil {
		return err
	}
	e.setSkill(p, s, max(0, min(level, s.MaxLevel)))
	e.save(p)
	return nil
}

// setSkill is the single place a level changes.
//
// Postcondition: Exp == 0; abilities above the new level are gone from
// every slot; the point budget holds for every slot.
func (e *Engine) setSkill(p *progress.Player, s *catalog.Skill, level int) {
	sp := p.Skill(s.ID)
	old := sp.Level
	sp.Level = level
	sp.Exp = 0

	if level < old {
		for _, a := range s.Assignments {
			if a.RequiredLevel < level {
				continue
			}
			if o, ok := p.LookupAbility(a.Ability); ok {
				o.LevelsGained = 0
			}
		}
	}

	e.logger.Debug("skill level changed",
		observability.Player(p.ID),
		observability.Skill(s.ID),
		zap.Int("from", old),
		zap.Int("to", level),
	)

	switch {
	case level > old:
		e.notify.Notify(p.ID, fmt.Sprintf("You improve your %s skill to %d.", s.Name, level))
		if isTierCap(s, level) && sp.Resets < progress.MaxSkillResets {
			sp.Resets++
			e.notify.Notify(p.ID, fmt.Sprintf("You have earned a free skill reset in %s.", s.Name))
		}
	case level < old:
		e.notify.Notify(p.ID, fmt.Sprintf("Your %s skill drops to %d.", s.Name, level))
	}

	e.checkAbilityLevels(p, s)
	e.refreshSkillLimits(p)

	if level > old {
		if n := e.PointsAvailable(p, s.ID); n > 0 {
			e.notify.Notify(p.ID, fmt.Sprintf("You have %d ability point%s to spend in %s.", n, plural(n), s.Name))
		}
	}
}

// CheckAbilityLevels strips every ability of skillID that now requires more
// than the player's level, and wipes the skill's purchases if the budget is
// still exceeded afterwards.
func (e *Engine) CheckAbilityLevels(p *progress.Player, skillID string) error {
	if !playable(p) {
		return ErrNPC
	}
	s, err := e.skill(skillID)
	if err != nil {
		return err
	}
	e.checkAbilityLevels(p, s)
	e.save(p)
	return nil
}

func (e *Engine) checkAbilityLevels(p *progress.Player, s *catalog.Skill) {
	level := p.SkillLevel(s.ID)
	active := p.CurrentSet

	var strip []string
	activeHit := false
	for _, a := range s.Assignments {
		if a.RequiredLevel <= level {
			continue
		}
		o, ok := p.LookupAbility(a.Ability)
		if !ok || !o.Any() {
			continue
		}
		strip = append(strip, a.Ability)
		activeHit = activeHit || o.Purchased[active]
	}

	if len(strip) > 0 {
		for _, id := range strip {
			if p.Owns(id, active) {
				e.sales.OnAbilityDeactivated(p, id)
			}
		}
		remove := func() {
			for _, id := range strip {
				p.Ability(id).Purchased = [progress.NumSlots]bool{}
			}
		}
		if activeHit {
			e.bracket(p, remove)
		} else {
			remove()
		}
		e.logger.Info("abilities removed below required level",
			observability.Player(p.ID),
			observability.Skill(s.ID),
			zap.Int("level", level),
			zap.Strings("abilities", strip),
		)
	}

	e.settleGrants(p, s)
	if p.Immortal {
		return
	}
	for slot := 0; slot < progress.NumSlots; slot++ {
		if spentIn(p, s, slot) > e.allowance(p, s, slot) {
			e.logger.Warn("ability points exceed budget; wiping skill purchases",
				observability.Player(p.ID),
				observability.Skill(s.ID),
				zap.Int("slot", slot),
				zap.Int("spent", spentIn(p, s, slot)),
				zap.Int("budget", e.allowance(p, s, slot)),
			)
			for wipe := 0; wipe < progress.NumSlots; wipe++ {
				e.clearAbilities(p, s, wipe)
			}
			return
		}
	}
}

// clearAbilities removes every purchased non-zero-level ability of s from
// slot, running the sale contract and tech bracket when slot is active.
func (e *Engine) clearAbilities(p *progress.Player, s *catalog.Skill, slot int) {
	var ids []string
	for _, a := range s.Assignments {
		if a.RequiredLevel > 0 && p.Owns(a.Ability, slot) {
			ids = append(ids, a.Ability)
		}
	}
	if sp, ok := p.LookupSkill(s.ID); ok {
		sp.DeadEndGrant[slot] = false
	}
	if len(ids) == 0 {
		return
	}
	remove := func() {
		for _, id := range ids {
			p.Ability(id).Purchased[slot] = false
		}
	}
	if slot != p.CurrentSet {
		remove()
		return
	}
	for _, id := range ids {
		e.sales.OnAbilityDeactivated(p, id)
	}
	e.bracket(p, remove)
}

// RefreshSkillLimits recomputes whether p may still raise skills from zero
// and whether p qualifies for the bonus specialty slot.
func (e *Engine) RefreshSkillLimits(p *progress.Player) {
	if !playable(p) {
		return
	}
	e.refreshSkillLimits(p)
}

func (e *Engine) refreshSkillLimits(p *progress.Player) {
	atZero, overBasic := 0, 0
	for _, s := range e.catalog.Current().Skills() {
		level := p.SkillLevel(s.ID)
		if level == 0 {
			atZero++
		}
		if level > catalog.BasicSkillCap {
			overBasic++
		}
	}
	p.CanGainNewSkills = atZero > e.cfg.ZeroesForBonusSkills || overBasic <= e.cfg.SpecialtyAllowed
	p.CanGetBonusSkills = atZero >= e.cfg.ZeroesForBonusSkills
}

// DailyAllowance returns the number of full-rate gains p receives per day.
func (e *Engine) DailyAllowance(p *progress.Player) int {
	n := e.cfg.DailySkillPoints
	if p.BonusExpTrait {
		n += e.cfg.BonusTraitDailySkills
	}
	return n
}

// ResetDailyAllowance tops the player's daily full-rate gains back up.
// It never lowers an allowance that is already higher.
func (e *Engine) ResetDailyAllowance(p *progress.Player) bool {
	if !playable(p) {
		return false
	}
	gain := e.DailyAllowance(p)
	if p.DailyBonusExp >= gain {
		return false
	}
	p.DailyBonusExp = gain
	e.notify.Notify(p.ID, "Your daily bonus experience has reset!")
	e.save(p)
	return true
}

// FactionSkillup grants ability experience to every playing member of
// factionID, e.g. when the faction completes shared work.
func (e *Engine) FactionSkillup(members []*progress.Player, factionID uuid.UUID, abilityID string, amount float64) int {
	leveled := 0
	for _, p := range members {
		if !playable(p) || !p.Playing || p.FactionID != factionID || factionID == uuid.Nil {
			continue
		}
		if e.GainAbilityExp(p, abilityID, amount) {
			leveled++
		}
	}
	return leveled
}

// Difficulty scales the chance of a SkillCheck.
type Difficulty int

const (
	Easy Difficulty = iota
	Medium
	Hard
	Rarely
)

var difficultyModifier = map[Difficulty]float64{
	Easy:   1.5,
	Medium: 1,
	Hard:   0.66,
	Rarely: 0.1,
}

// AbilityLevel is the effective level p uses abilityID at: the parent skill
// level when owned, the player's best skill for skill-less abilities, and
// zero when not owned.
func (e *Engine) AbilityLevel(p *progress.Player, abilityID string) int {
	if !playable(p) || !p.OwnsActive(abilityID) {
		return 0
	}
	if pl, ok := e.catalog.Current().Placement(abilityID); ok {
		return p.SkillLevel(pl.Skill.ID)
	}
	best := 0
	for _, id := range p.SkillIDs() {
		best = max(best, p.SkillLevel(id))
	}
	return min(best, catalog.MaxSkillCap)
}

// SkillCheck rolls 1d100 against the ability level scaled by difficulty.
func (e *Engine) SkillCheck(p *progress.Player, abilityID string, d Difficulty) bool {
	chance := int(difficultyModifier[d] * float64(e.AbilityLevel(p, abilityID)))
	return e.roller.Percent("skill check") <= chance
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
