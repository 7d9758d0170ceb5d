package scripting

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/cory-johannsen/advancement/internal/game/progress"
)

// SaleHookName is the Lua global called when an ability leaves a player's
// active loadout: on_ability_sold(player_id, ability_id, set).
const SaleHookName = "on_ability_sold"

// SaleHook forwards ability deactivations to Lua.
type SaleHook struct {
	mgr *Manager
}

// NewSaleHook creates a SaleHook over mgr.
func NewSaleHook(mgr *Manager) *SaleHook {
	return &SaleHook{mgr: mgr}
}

// OnAbilityDeactivated calls on_ability_sold when the scripts define it.
func (h *SaleHook) OnAbilityDeactivated(p *progress.Player, abilityID string) {
	_, _ = h.mgr.CallHook(SaleHookName, lua.LNumber(p.ID), lua.LString(abilityID), lua.LNumber(p.CurrentSet))
}

// UseHookName is the Lua global called after an ability is charged:
// on_ability_used(player_id, ability_id). A string result is shown to the
// player in place of the default message.
const UseHookName = "on_ability_used"

// OnAbilityUsed calls on_ability_used and returns its message, if any.
func (m *Manager) OnAbilityUsed(playerID int64, abilityID string) (string, bool) {
	ret, err := m.CallHook(UseHookName, lua.LNumber(playerID), lua.LString(abilityID))
	if err != nil {
		return "", false
	}
	if s, ok := ret.(lua.LString); ok && s != "" {
		return string(s), true
	}
	return "", false
}
