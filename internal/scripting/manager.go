package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/advancement/internal/game/dice"
)

// PlayerInfo is a snapshot of a player passed to Lua.
type PlayerInfo struct {
	ID         int64
	Name       string
	Faction    string
	CurrentSet int
	Skills     map[string]int
}

// Manager owns the sandboxed VM that progression hooks run in.
//
// Calls are serialized: an LState is single-threaded.
type Manager struct {
	mu        sync.Mutex
	L         *lua.LState
	cancel    func()
	instLimit int
	roller    *dice.Roller
	logger    *zap.Logger

	// Injected after construction. nil = no-op in engine.* modules.
	GetPlayer   func(id int64) *PlayerInfo
	Notify      func(id int64, msg string)
	ApplyEffect func(id int64, effectID string, stacks, ticks int) error
	HasEffect   func(id int64, effectID string) bool
}

// NewManager creates a Manager with no scripts loaded.
//
// Precondition: roller and logger must be non-nil.
func NewManager(roller *dice.Roller, logger *zap.Logger) *Manager {
	return &Manager{roller: roller, logger: logger}
}

// Load replaces the VM with a fresh one that has run every *.lua file in
// scriptDir in lexicographic order.
//
// Postcondition: on error the previous VM, if any, stays in effect.
func (m *Manager) Load(scriptDir string, instLimit int) error {
	L, cancel := NewSandboxedState(instLimit)
	m.RegisterModules(L)

	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		cancel()
		L.Close()
		return fmt.Errorf("scripting: reading script dir %q: %w", scriptDir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			files = append(files, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(files)

	for _, path := range files {
		if err := L.DoFile(path); err != nil {
			cancel()
			L.Close()
			return fmt.Errorf("scripting: loading %q: %w", path, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.L != nil {
		m.cancel()
		m.L.Close()
	}
	m.L, m.cancel, m.instLimit = L, cancel, instLimit
	m.logger.Info("scripts loaded", zap.String("dir", scriptDir), zap.Int("files", len(files)))
	return nil
}

// Loaded reports whether a VM is in place.
func (m *Manager) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.L != nil
}

// Close releases the VM.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.L != nil {
		m.cancel()
		m.L.Close()
		m.L = nil
	}
}

// CallHook calls the named Lua global with a fresh instruction budget and
// returns its first result. A missing VM or hook yields (LNil, nil). Lua
// runtime errors are logged at warn and never propagated.
func (m *Manager) CallHook(hook string, args ...lua.LValue) (lua.LValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.L == nil {
		return lua.LNil, nil
	}
	fn := m.L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, nil
	}

	cancel := rebudget(m.L, m.instLimit)
	defer cancel()
	if err := m.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...); err != nil {
		m.logger.Warn("scripting: Lua runtime error", zap.String("hook", hook), zap.Error(err))
		return lua.LNil, nil
	}
	ret := m.L.Get(-1)
	m.L.Pop(1)
	return ret, nil
}
