package progression_test

import (
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/advancement/internal/config"
	"github.com/cory-johannsen/advancement/internal/game/catalog"
	"github.com/cory-johannsen/advancement/internal/game/dice"
	"github.com/cory-johannsen/advancement/internal/game/faction"
	"github.com/cory-johannsen/advancement/internal/game/progress"
	"github.com/cory-johannsen/advancement/internal/game/progression"
)

type saleCall struct {
	player  int64
	ability string
}

type saleRecorder struct{ calls []saleCall }

func (r *saleRecorder) OnAbilityDeactivated(p *progress.Player, abilityID string) {
	r.calls = append(r.calls, saleCall{p.ID, abilityID})
}

func (r *saleRecorder) count(abilityID string) int {
	n := 0
	for _, c := range r.calls {
		if c.ability == abilityID {
			n++
		}
	}
	return n
}

// countingTechs wraps the real synchronizer and counts bracket halves.
type countingTechs struct {
	inner                 *faction.Synchronizer
	registers, deregister int
}

func (c *countingTechs) Register(p *progress.Player) {
	c.registers++
	c.inner.Register(p)
}

func (c *countingTechs) Deregister(p *progress.Player) {
	c.deregister++
	c.inner.Deregister(p)
}

type saveCounter struct{ saves int }

func (s *saveCounter) Save(*progress.Player) { s.saves++ }

type notes struct{ msgs []string }

func (n *notes) Notify(_ int64, msg string) { n.msgs = append(n.msgs, msg) }

type harness struct {
	engine  *progression.Engine
	holder  *catalog.Holder
	sales   *saleRecorder
	techs   *countingTechs
	saver   *saveCounter
	notes   *notes
	faction *faction.Faction
}

func newHarness(t require.TestingT, cfg config.ProgressionConfig, src dice.Source, skills []*catalog.Skill, abilities []*catalog.Ability) *harness {
	c, err := catalog.New(skills, abilities)
	require.NoError(t, err)
	holder := catalog.NewHolder(c)

	reg := faction.NewRegistry()
	f := faction.New("Red")
	reg.Add(f)

	h := &harness{
		holder:  holder,
		sales:   &saleRecorder{},
		techs:   &countingTechs{inner: faction.NewSynchronizer(reg, holder, zap.NewNop())},
		saver:   &saveCounter{},
		notes:   &notes{},
		faction: f,
	}
	h.engine = progression.NewEngine(cfg, holder, dice.NewLoggedRoller(src, zap.NewNop()), zap.NewNop(), progression.Collaborators{
		Sales:    h.sales,
		Techs:    h.techs,
		Saver:    h.saver,
		Notifier: h.notes,
	})
	return h
}

// player returns an affiliated player with a large daily allowance. The
// player is offline so tests can shape ownership before calling online.
func (h *harness) player(id int64) *progress.Player {
	p := progress.NewPlayer(id, "p")
	p.FactionID = h.faction.ID
	p.DailyBonusExp = 1000
	return p
}

// online marks p as playing and registers its active slot, as login does.
func (h *harness) online(p *progress.Player) *progress.Player {
	p.Playing = true
	h.techs.inner.Register(p)
	return p
}

// standard fixture: a survival tree, an empire skill with tech-bearing
// abilities, and one skill-less ability.
func standardCatalog() ([]*catalog.Skill, []*catalog.Ability) {
	abilities := []*catalog.Ability{
		{ID: "gather", Name: "Gather"},
		{ID: "forage", Name: "Forage", Tech: catalog.TechApiaries},
		{ID: "hunt", Name: "Hunt"},
		{ID: "track", Name: "Track", Tech: catalog.TechLocks},
		{ID: "trap", Name: "Trap"},
		{ID: "skin", Name: "Skin"},
		{ID: "camp", Name: "Camp"},
		{ID: "workforce", Name: "Workforce", Tech: catalog.TechWorkforce},
		{ID: "commerce", Name: "Commerce", Tech: catalog.TechCommerce},
		{ID: "skilled_labor", Name: "Skilled Labor", Tech: catalog.TechSkilledLabor},
		{ID: "vampirism", Name: "Vampirism", Tech: catalog.TechPortals},
	}
	skills := []*catalog.Skill{
		{
			ID: "survival", Name: "Survival", MaxLevel: 100,
			Assignments: []catalog.Assignment{
				{Ability: "gather", RequiredLevel: 0},
				{Ability: "forage", RequiredLevel: 1},
				{Ability: "hunt", RequiredLevel: 10, Prereq: "forage"},
				{Ability: "track", RequiredLevel: 25, Prereq: "hunt"},
				{Ability: "trap", RequiredLevel: 5},
				{Ability: "skin", RequiredLevel: 15, Prereq: "trap"},
				{Ability: "camp", RequiredLevel: 50},
			},
		},
		{
			ID: "empire", Name: "Empire", MaxLevel: 100,
			Assignments: []catalog.Assignment{
				{Ability: "workforce", RequiredLevel: 1},
				{Ability: "commerce", RequiredLevel: 20, Prereq: "workforce"},
				{Ability: "skilled_labor", RequiredLevel: 55, Prereq: "commerce"},
			},
		},
	}
	return skills, abilities
}

func standardHarness(t require.TestingT, src dice.Source) *harness {
	skills, abilities := standardCatalog()
	return newHarness(t, progression.DefaultConfig(), src, skills, abilities)
}

// freshCounters registers a copy of p against an empty faction and returns
// the counters a from-scratch login would produce.
func freshCounters(h *harness, p *progress.Player) map[catalog.Tech]int {
	reg := faction.NewRegistry()
	f := faction.Restore(uuid.New(), "fresh")
	reg.Add(f)
	q := p.Clone()
	q.FactionID = f.ID
	q.Playing = true
	faction.NewSynchronizer(reg, h.holder, zap.NewNop()).Register(q)
	return f.Techs()
}
