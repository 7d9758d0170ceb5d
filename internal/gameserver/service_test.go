package gameserver_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/advancement/internal/config"
	"github.com/cory-johannsen/advancement/internal/game/catalog"
	"github.com/cory-johannsen/advancement/internal/game/condition"
	"github.com/cory-johannsen/advancement/internal/game/dice"
	"github.com/cory-johannsen/advancement/internal/game/faction"
	"github.com/cory-johannsen/advancement/internal/game/gate"
	"github.com/cory-johannsen/advancement/internal/game/progress"
	"github.com/cory-johannsen/advancement/internal/game/progression"
	"github.com/cory-johannsen/advancement/internal/gameserver"
	"github.com/cory-johannsen/advancement/internal/scripting"
)

var errStoreDown = errors.New("store down")

type memStore struct {
	mu      sync.Mutex
	players map[int64]*progress.Player
	saves   int
	fail    bool
	hold    *heldSave
}

// heldSave parks the next Save until release is closed.
type heldSave struct {
	entered chan struct{}
	release chan struct{}
}

func (m *memStore) holdNextSave() *heldSave {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hold = &heldSave{entered: make(chan struct{}), release: make(chan struct{})}
	return m.hold
}

func newMemStore() *memStore {
	return &memStore{players: make(map[int64]*progress.Player)}
}

func (m *memStore) put(p *progress.Player) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[p.ID] = p.Clone()
}

func (m *memStore) get(id int64) *progress.Player {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.players[id]
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *memStore) Load(_ context.Context, id int64) (*progress.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return p.Clone(), nil
}

func (m *memStore) Save(_ context.Context, p *progress.Player) error {
	m.mu.Lock()
	hold := m.hold
	m.hold = nil
	m.mu.Unlock()
	if hold != nil {
		close(hold.entered)
		<-hold.release
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errStoreDown
	}
	m.saves++
	m.players[p.ID] = p.Clone()
	return nil
}

type harness struct {
	svc    *gameserver.Service
	store  *memStore
	red    *faction.Faction
	holder *catalog.Holder
	logs   *observer.ObservedLogs
}

func survival() ([]*catalog.Skill, []*catalog.Ability) {
	abilities := []*catalog.Ability{
		{ID: "gather", Name: "Gather"},
		{ID: "forage", Name: "Forage", Tech: catalog.TechGlassblowing},
		{ID: "hunt", Name: "Hunt", Use: catalog.Usage{Pool: "move", Cost: 10, Cooldown: "hunting", Seconds: 30, Exp: 25}},
		{ID: "track", Name: "Track"},
		{ID: "mist_form", Name: "Mist Form", Use: catalog.Usage{Effect: "mist_form"}},
		{ID: "ride", Name: "Ride"},
		{ID: "boost", Name: "Boost", Use: catalog.Usage{Pool: "blood", Cost: 5, Effect: "boost", Ticks: 1}},
	}
	skills := []*catalog.Skill{{
		ID: "survival", Name: "Survival", MaxLevel: 100,
		Assignments: []catalog.Assignment{
			{Ability: "gather", RequiredLevel: 0},
			{Ability: "mist_form", RequiredLevel: 0},
			{Ability: "ride", RequiredLevel: 0},
			{Ability: "boost", RequiredLevel: 0},
			{Ability: "forage", RequiredLevel: 1},
			{Ability: "hunt", RequiredLevel: 10, Prereq: "forage"},
			{Ability: "track", RequiredLevel: 25, Prereq: "hunt"},
		},
	}}
	return skills, abilities
}

func testConfig() config.Config {
	return config.Config{
		Progression: progression.DefaultConfig(),
		Gate:        config.GateConfig{UniversalWait: 0},
	}
}

func effects() *condition.Registry {
	reg := condition.NewRegistry()
	reg.Register(&condition.Def{ID: "mist_form", Name: "Mist Form", Kind: condition.KindMorph,
		Ability: "mist_form", DurationType: "permanent", RestrictAbilities: []string{"ride"}})
	reg.Register(&condition.Def{ID: "boost", Name: "Boost", Kind: condition.KindAffect,
		Ability: "boost", DurationType: "ticks", EndMessage: "Your boost fades."})
	return reg
}

func newHarness(t *testing.T, scripts *scripting.Manager) *harness {
	t.Helper()
	skills, abilities := survival()
	c, err := catalog.New(skills, abilities)
	require.NoError(t, err)

	h := &harness{store: newMemStore(), holder: catalog.NewHolder(c), red: faction.New("Red")}
	reg := faction.NewRegistry()
	reg.Add(h.red)

	core, logs := observer.New(zap.DebugLevel)
	h.logs = logs
	h.svc = gameserver.NewService(gameserver.Deps{
		Config:   testConfig(),
		Catalog:  h.holder,
		Factions: reg,
		Store:    h.store,
		Effects:  effects(),
		Scripts:  scripts,
		Roller:   dice.NewLoggedRoller(dice.NewFixedSource(1), zap.NewNop()),
		Logger:   zap.New(core),
	})
	return h
}

// hunter is level 10 in Survival, owns forage and hunt in slot 0, and
// belongs to Red.
func (h *harness) hunter(id int64, name string) *progress.Player {
	p := progress.NewPlayer(id, name)
	p.AccountID = 100 + id
	p.FactionID = h.red.ID
	p.DailyBonusExp = 15
	p.Skill("survival").Level = 10
	p.Ability("forage").Purchased[0] = true
	p.Ability("hunt").Purchased[0] = true
	h.store.put(p)
	return p
}

func (h *harness) login(t *testing.T, id int64) int64 {
	t.Helper()
	_, err := h.svc.Login(context.Background(), 100+id, "user", "player", id)
	require.NoError(t, err)
	return id
}

func (h *harness) do(t *testing.T, id int64, line string) string {
	t.Helper()
	out, err := h.svc.HandleCommand(context.Background(), id, line)
	require.NoError(t, err)
	return out
}

func TestLogin_RegistersTechsAndGrantsFreeAbilities(t *testing.T) {
	h := newHarness(t, nil)
	h.hunter(1, "Ana")

	sess, err := h.svc.Login(context.Background(), 101, "ana", "player", 1)
	require.NoError(t, err)
	assert.True(t, sess.Player.Playing)
	assert.True(t, sess.Player.Owns("gather", 0))
	assert.True(t, sess.Player.Owns("gather", 1))
	assert.Equal(t, 1, h.red.Tech(catalog.TechGlassblowing))
	assert.Equal(t, 1, h.logs.FilterMessage("player logged in").Len())

	_, err = h.svc.Login(context.Background(), 101, "ana", "player", 1)
	assert.ErrorIs(t, err, gameserver.ErrAlreadyOnline)
}

func TestLogin_Refusals(t *testing.T) {
	h := newHarness(t, nil)
	h.hunter(1, "Ana")

	_, err := h.svc.Login(context.Background(), 999, "mallory", "player", 1)
	assert.ErrorIs(t, err, gameserver.ErrWrongAccount)
	_, err = h.svc.Login(context.Background(), 101, "ana", "player", 42)
	assert.Error(t, err)
	assert.Equal(t, 0, h.red.Tech(catalog.TechGlassblowing))
}

func TestLogin_RefusesNPCRecord(t *testing.T) {
	h := newHarness(t, nil)
	p := h.hunter(1, "Ana")
	p.IsNPC = true
	h.store.put(p)

	_, err := h.svc.Login(context.Background(), 101, "ana", "player", 1)
	assert.ErrorIs(t, err, progress.ErrNPC)
	assert.Equal(t, 0, h.svc.Sessions().PlayerCount())
	assert.Equal(t, 0, h.red.Tech(catalog.TechGlassblowing))
}

func TestLogin_KeepsSkillsMissingFromCatalog(t *testing.T) {
	h := newHarness(t, nil)
	p := h.hunter(1, "Ana")
	p.Skill("alchemy").Level = 30
	h.store.put(p)

	sess, err := h.svc.Login(context.Background(), 101, "ana", "player", 1)
	require.NoError(t, err)
	assert.Equal(t, 30, sess.Player.SkillLevel("alchemy"))
	assert.True(t, sess.Player.Owns("hunt", 0))

	skipped := h.logs.FilterMessage("skipping ability check for unknown skill").All()
	require.Len(t, skipped, 1)
	assert.Equal(t, zap.DebugLevel, skipped[0].Level)
	assert.Equal(t, "alchemy", skipped[0].ContextMap()["skill"])
}

func TestLogin_StripsAbilitiesAboveLevel(t *testing.T) {
	h := newHarness(t, nil)
	p := h.hunter(1, "Ana")
	p.Skill("survival").Level = 5
	h.store.put(p)

	sess, err := h.svc.Login(context.Background(), 101, "ana", "player", 1)
	require.NoError(t, err)
	assert.False(t, sess.Player.Owns("hunt", 0))
	assert.True(t, sess.Player.Owns("forage", 0))
}

func TestLogout_SavesAndReleases(t *testing.T) {
	h := newHarness(t, nil)
	h.hunter(1, "Ana")
	id := h.login(t, 1)
	assert.Equal(t, "You use Hunt.", h.do(t, id, "use hunt"))

	require.NoError(t, h.svc.Logout(context.Background(), id))
	assert.Equal(t, 0, h.red.Tech(catalog.TechGlassblowing))
	assert.Equal(t, 0, h.svc.Sessions().PlayerCount())

	saved := h.store.get(id)
	require.NotNil(t, saved)
	assert.False(t, saved.Playing)
	assert.True(t, saved.Owns("gather", 1))
	assert.Equal(t, 11, saved.SkillLevel("survival"))

	assert.ErrorIs(t, h.svc.Logout(context.Background(), id), gameserver.ErrNotOnline)

	// Cooldowns do not survive a relog.
	h.login(t, 1)
	assert.Equal(t, "You use Hunt.", h.do(t, id, "use hunt"))
}

func TestLogout_SaveFailureStillReleases(t *testing.T) {
	h := newHarness(t, nil)
	h.hunter(1, "Ana")
	id := h.login(t, 1)

	h.store.fail = true
	err := h.svc.Logout(context.Background(), id)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, 0, h.svc.Sessions().PlayerCount())
	assert.Equal(t, 0, h.red.Tech(catalog.TechGlassblowing))
}

func TestHandleCommand(t *testing.T) {
	h := newHarness(t, nil)
	h.hunter(1, "Ana")
	id := h.login(t, 1)

	assert.Equal(t, "You switch to skill set 2.", h.do(t, id, "skillset 2"))
	assert.Equal(t, 0, h.red.Tech(catalog.TechGlassblowing), "forage is not in slot 1")
	assert.Equal(t, "You switch to skill set 1.", h.do(t, id, "ss 1"))
	assert.Equal(t, 1, h.red.Tech(catalog.TechGlassblowing))

	assert.Contains(t, h.do(t, id, "dance"), "Unknown command")
	assert.Equal(t, "", h.do(t, id, "   "))
	assert.Equal(t, "Players online (1): Ana", h.do(t, id, "who"))

	assert.Equal(t, "Goodbye.", h.do(t, id, "quit"))
	_, err := h.svc.HandleCommand(context.Background(), id, "who")
	assert.ErrorIs(t, err, gameserver.ErrNotOnline)
}

func TestUseAbility_ChargesAndGainsExp(t *testing.T) {
	h := newHarness(t, nil)
	h.hunter(1, "Ana")
	id := h.login(t, 1)
	sess, ok := h.svc.Sessions().GetPlayer(id)
	require.True(t, ok)

	assert.Equal(t, "You use Hunt.", h.do(t, id, "use hunt"))
	assert.Equal(t, 90, sess.PoolValue(gate.Move))
	assert.Equal(t, 11, sess.Player.SkillLevel("survival"))
	assert.Equal(t, 1, sess.Player.Ability("hunt").LevelsGained)
	assert.Equal(t, 14, sess.Player.DailyBonusExp)

	assert.Equal(t, "You must wait 30s before using Hunt again.", h.do(t, id, "use hunt"))
	assert.Equal(t, 90, sess.PoolValue(gate.Move))
}

func TestUseAbility_Refusals(t *testing.T) {
	h := newHarness(t, nil)
	h.hunter(1, "Ana")
	id := h.login(t, 1)
	sess, ok := h.svc.Sessions().GetPlayer(id)
	require.True(t, ok)

	assert.Equal(t, "Usage: use <ability>", h.do(t, id, "use"))
	assert.Equal(t, "There is no such ability.", h.do(t, id, "use flight"))
	assert.Equal(t, "You do not know Track.", h.do(t, id, "use track"))

	sess.SetPoolValue(gate.Move, 5)
	assert.Equal(t, "You need more than 10 move to use Hunt.", h.do(t, id, "use hunt"))

	sess.BloodInert = true
	assert.Equal(t, "Your blood is inert.", h.do(t, id, "use boost"))
}

func TestUseAbility_StandingEffects(t *testing.T) {
	h := newHarness(t, nil)
	h.hunter(1, "Ana")
	id := h.login(t, 1)

	assert.Equal(t, "You use Ride.", h.do(t, id, "use ride"))
	assert.Equal(t, "You use Mist Form.", h.do(t, id, "use mist form"))
	assert.Equal(t, "You cannot use Ride in your current form.", h.do(t, id, "use ride"))

	assert.Equal(t, "You use Boost.", h.do(t, id, "use boost"))
	assert.Equal(t, 1, h.svc.TickEffects())
	assert.Equal(t, 0, h.svc.TickEffects())
}

func TestUseAbility_ScriptMessage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hooks.lua"), []byte(`
		function on_ability_used(player_id, ability_id)
			if ability_id == "hunt" then
				local p = engine.player.get(player_id)
				return p.name .. " stalks the prey for " .. p.faction .. "."
			end
			return nil
		end
	`), 0644))
	mgr := scripting.NewManager(dice.NewLoggedRoller(dice.NewFixedSource(1), zap.NewNop()), zap.NewNop())
	require.NoError(t, mgr.Load(dir, 0))
	t.Cleanup(mgr.Close)

	h := newHarness(t, mgr)
	h.hunter(1, "Ana")
	id := h.login(t, 1)

	assert.Equal(t, "Ana stalks the prey for Red.", h.do(t, id, "use hunt"))
	assert.Equal(t, "You use Forage.", h.do(t, id, "use forage"))
}

func TestResetDaily(t *testing.T) {
	h := newHarness(t, nil)
	p := h.hunter(1, "Ana")
	p.DailyBonusExp = 0
	h.store.put(p)
	h.hunter(2, "Bo")
	h.login(t, 1)
	h.login(t, 2)

	assert.Equal(t, 1, h.svc.ResetDaily())
	sess, ok := h.svc.Sessions().GetPlayer(1)
	require.True(t, ok)
	assert.Equal(t, 15, sess.Player.DailyBonusExp)
	assert.Equal(t, 0, h.svc.ResetDaily())
}

func TestFlushAll(t *testing.T) {
	h := newHarness(t, nil)
	h.hunter(1, "Ana")
	h.hunter(2, "Bo")
	h.login(t, 1)
	h.login(t, 2)

	before := h.store.saveCount()
	require.NoError(t, h.svc.FlushAll(context.Background()))
	assert.Equal(t, before+2, h.store.saveCount())

	h.store.fail = true
	assert.ErrorIs(t, h.svc.FlushAll(context.Background()), errStoreDown)
}

func TestFlushAll_KeepsNewerSave(t *testing.T) {
	h := newHarness(t, nil)
	p := h.hunter(1, "Ana")
	p.Skill("survival").Level = 25
	h.store.put(p)
	id := h.login(t, 1)

	hold := h.store.holdNextSave()
	flushed := make(chan error, 1)
	go func() { flushed <- h.svc.FlushAll(context.Background()) }()
	<-hold.entered

	// The flush holds a snapshot taken before track was bought.
	assert.Equal(t, "You learn Track.", h.do(t, id, "skills buy track"))
	loggedOut := make(chan error, 1)
	go func() { loggedOut <- h.svc.Logout(context.Background(), id) }()
	close(hold.release)

	require.NoError(t, <-flushed)
	require.NoError(t, <-loggedOut)
	saved := h.store.get(id)
	require.NotNil(t, saved)
	assert.True(t, saved.Owns("track", 0))
	assert.False(t, saved.Playing)
}

func writeCatalog(t *testing.T, forageTech string) string {
	t.Helper()
	dir := t.TempDir()
	doc := `skill:
  id: survival
  name: Survival
  max_level: 100
  abilities:
    - {id: gather, name: Gather, level: 0}
    - {id: whittle, name: Whittle, level: 0}
    - {id: forage, name: Forage, level: 1, tech: ` + forageTech + `}
    - {id: hunt, name: Hunt, level: 10, prereq: forage}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "survival.yaml"), []byte(doc), 0644))
	return dir
}

func TestReloadCatalog(t *testing.T) {
	h := newHarness(t, nil)
	h.hunter(1, "Ana")
	id := h.login(t, 1)

	require.NoError(t, h.svc.ReloadCatalog(writeCatalog(t, "locks")))
	sess, ok := h.svc.Sessions().GetPlayer(id)
	require.True(t, ok)
	assert.True(t, sess.Player.Owns("whittle", 0))
	assert.True(t, sess.Player.Owns("whittle", 1))
	assert.Equal(t, 0, h.red.Tech(catalog.TechGlassblowing))
	assert.Equal(t, 1, h.red.Tech(catalog.TechLocks))
	assert.Equal(t, 1, h.logs.FilterMessage("catalog reloaded").Len())
}

func TestReloadCatalog_StripsAbilitiesAboveNewLevels(t *testing.T) {
	h := newHarness(t, nil)
	h.hunter(1, "Ana")
	id := h.login(t, 1)

	dir := writeCatalog(t, "glassblowing")
	doc, err := os.ReadFile(filepath.Join(dir, "survival.yaml"))
	require.NoError(t, err)
	raised := strings.Replace(string(doc), "{id: hunt, name: Hunt, level: 10", "{id: hunt, name: Hunt, level: 20", 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "survival.yaml"), []byte(raised), 0644))

	require.NoError(t, h.svc.ReloadCatalog(dir))
	sess, ok := h.svc.Sessions().GetPlayer(id)
	require.True(t, ok)
	assert.False(t, sess.Player.Owns("hunt", 0))
	assert.True(t, sess.Player.Owns("forage", 0))
	assert.True(t, sess.Player.Owns("whittle", 0))
	assert.Equal(t, 1, h.red.Tech(catalog.TechGlassblowing))
}

func TestReloadCatalog_InvalidKeepsOld(t *testing.T) {
	h := newHarness(t, nil)
	h.hunter(1, "Ana")
	h.login(t, 1)

	assert.Error(t, h.svc.ReloadCatalog(writeCatalog(t, "alchemy")))
	assert.Error(t, h.svc.ReloadCatalog(filepath.Join(t.TempDir(), "missing")))
	_, ok := h.holder.Current().AbilityByID("mist_form")
	assert.True(t, ok)
	assert.Equal(t, 1, h.red.Tech(catalog.TechGlassblowing))
}
