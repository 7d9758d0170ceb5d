package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/advancement/internal/game/dice"
)

// RegisterModules installs the engine.log, engine.dice, engine.player and
// engine.effects tables into L.
//
// Precondition: L must be from NewSandboxedState.
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()
	L.SetField(engine, "log", m.logModule(L))
	L.SetField(engine, "dice", m.diceModule(L))
	L.SetField(engine, "player", m.playerModule(L))
	L.SetField(engine, "effects", m.effectsModule(L))
	L.SetGlobal("engine", engine)
}

func (m *Manager) logModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	levels := map[string]func(string, ...zap.Field){
		"debug": m.logger.Debug,
		"info":  m.logger.Info,
		"warn":  m.logger.Warn,
		"error": m.logger.Error,
	}
	for name, fn := range levels {
		L.SetField(mod, name, L.NewFunction(func(L *lua.LState) int {
			fn(L.CheckString(1), zap.String("source", "lua"))
			return 0
		}))
	}
	return mod
}

// engine.dice.roll(expr) returns {total=, dice={...}, modifier=}.
func (m *Manager) diceModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	L.SetField(mod, "roll", L.NewFunction(func(L *lua.LState) int {
		expr, err := dice.Parse(L.CheckString(1))
		if err != nil {
			L.RaiseError("engine.dice.roll: %s", err.Error())
			return 0
		}
		res := m.roller.Roll("lua", expr)
		t := L.NewTable()
		L.SetField(t, "total", lua.LNumber(res.Total()))
		L.SetField(t, "modifier", lua.LNumber(res.Modifier))
		faces := L.NewTable()
		for _, d := range res.Dice {
			faces.Append(lua.LNumber(d))
		}
		L.SetField(t, "dice", faces)
		L.Push(t)
		return 1
	}))
	return mod
}

// engine.player.get(id) returns a snapshot table or nil.
// engine.player.notify(id, msg) sends a message.
func (m *Manager) playerModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	L.SetField(mod, "get", L.NewFunction(func(L *lua.LState) int {
		id := int64(L.CheckNumber(1))
		if m.GetPlayer == nil {
			L.Push(lua.LNil)
			return 1
		}
		info := m.GetPlayer(id)
		if info == nil {
			L.Push(lua.LNil)
			return 1
		}
		t := L.NewTable()
		L.SetField(t, "id", lua.LNumber(info.ID))
		L.SetField(t, "name", lua.LString(info.Name))
		L.SetField(t, "faction", lua.LString(info.Faction))
		L.SetField(t, "current_set", lua.LNumber(info.CurrentSet))
		skills := L.NewTable()
		for id, level := range info.Skills {
			L.SetField(skills, id, lua.LNumber(level))
		}
		L.SetField(t, "skills", skills)
		L.Push(t)
		return 1
	}))
	L.SetField(mod, "notify", L.NewFunction(func(L *lua.LState) int {
		id, msg := int64(L.CheckNumber(1)), L.CheckString(2)
		if m.Notify != nil {
			m.Notify(id, msg)
		}
		return 0
	}))
	return mod
}

// engine.effects.apply(id, effect, stacks, ticks) returns true on success.
// engine.effects.has(id, effect) returns a boolean.
func (m *Manager) effectsModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	L.SetField(mod, "apply", L.NewFunction(func(L *lua.LState) int {
		id, effect := int64(L.CheckNumber(1)), L.CheckString(2)
		stacks, ticks := L.OptInt(3, 1), L.OptInt(4, -1)
		if m.ApplyEffect == nil {
			L.Push(lua.LFalse)
			return 1
		}
		if err := m.ApplyEffect(id, effect, stacks, ticks); err != nil {
			m.logger.Warn("engine.effects.apply failed", zap.String("effect", effect), zap.Error(err))
			L.Push(lua.LFalse)
			return 1
		}
		L.Push(lua.LTrue)
		return 1
	}))
	L.SetField(mod, "has", L.NewFunction(func(L *lua.LState) int {
		id, effect := int64(L.CheckNumber(1)), L.CheckString(2)
		L.Push(lua.LBool(m.HasEffect != nil && m.HasEffect(id, effect)))
		return 1
	}))
	return mod
}
