package progression

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/advancement/internal/game/progress"
	"github.com/cory-johannsen/advancement/internal/observability"
)

// Swap makes slot the active loadout.
//
// Abilities that were active only in the old slot go through the sale
// contract; faction counters are re-derived around the flip; skill-less
// abilities are mirrored into both slots; each skill's budget is audited
// for the new slot.
func (e *Engine) Swap(p *progress.Player, slot int) error {
	if !playable(p) {
		return ErrNPC
	}
	if slot < 0 || slot >= progress.NumSlots {
		return ErrInvalidSlot
	}
	old := p.CurrentSet
	if slot == old {
		return ErrAlreadyActive
	}
	cat := e.catalog.Current()

	var skillBound, skillLess []string
	for _, id := range p.AbilityIDs() {
		if _, ok := cat.Placement(id); ok {
			skillBound = append(skillBound, id)
		} else {
			skillLess = append(skillLess, id)
		}
	}

	for _, id := range skillBound {
		if p.Owns(id, old) && !p.Owns(id, slot) {
			e.sales.OnAbilityDeactivated(p, id)
		}
	}

	e.bracket(p, func() {
		p.CurrentSet = slot
		for _, id := range skillLess {
			o := p.Ability(id)
			for i := range o.Purchased {
				o.Purchased[i] = o.Purchased[old]
			}
		}
	})

	if !p.Immortal {
		for _, s := range cat.Skills() {
			if spentIn(p, s, slot) > e.allowance(p, s, slot) {
				e.logger.Warn("swapped-in skill set exceeds budget; wiping skill purchases",
					observability.Player(p.ID),
					observability.Skill(s.ID),
					zap.Int("slot", slot),
				)
				e.clearAbilities(p, s, slot)
			}
		}
	}

	e.logger.Debug("skill set swapped", observability.Player(p.ID), zap.Int("from", old), zap.Int("to", slot))
	e.save(p)
	return nil
}

// GrantFreeAbilities gives p every released level-zero ability in both
// slots. It returns the number of ownership bits it set.
func (e *Engine) GrantFreeAbilities(p *progress.Player) int {
	if !playable(p) {
		return 0
	}
	var missing []string
	for _, id := range e.catalog.Current().LevelZeroAbilities() {
		o, ok := p.LookupAbility(id)
		if !ok || o.Purchased != [progress.NumSlots]bool{true, true} {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return 0
	}

	granted := 0
	e.bracket(p, func() {
		for _, id := range missing {
			o := p.Ability(id)
			for i := range o.Purchased {
				if !o.Purchased[i] {
					o.Purchased[i] = true
					granted++
				}
			}
		}
	})
	e.save(p)
	return granted
}
