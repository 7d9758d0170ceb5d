package faction_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/advancement/internal/game/catalog"
	"github.com/cory-johannsen/advancement/internal/game/faction"
	"github.com/cory-johannsen/advancement/internal/game/progress"
)

func testCatalog(t require.TestingT) *catalog.Holder {
	c, err := catalog.New(
		[]*catalog.Skill{{ID: "empire", Name: "Empire", MaxLevel: 100, Assignments: []catalog.Assignment{
			{Ability: "workforce", RequiredLevel: 10},
			{Ability: "commerce", RequiredLevel: 20},
			{Ability: "rally", RequiredLevel: 30},
		}}},
		[]*catalog.Ability{
			{ID: "workforce", Name: "Workforce", Tech: catalog.TechWorkforce},
			{ID: "commerce", Name: "Commerce", Tech: catalog.TechCommerce},
			{ID: "rally", Name: "Rally"},
		},
	)
	require.NoError(t, err)
	return catalog.NewHolder(c)
}

func member(f *faction.Faction, abilities ...string) *progress.Player {
	p := progress.NewPlayer(1, "m")
	p.FactionID = f.ID
	p.Playing = true
	for _, a := range abilities {
		p.Ability(a).Purchased[p.CurrentSet] = true
	}
	return p
}

func setup(t require.TestingT) (*faction.Faction, *faction.Synchronizer) {
	reg := faction.NewRegistry()
	f := faction.New("Red")
	reg.Add(f)
	return f, faction.NewSynchronizer(reg, testCatalog(t), zap.NewNop())
}

func TestRegister_CountsMappedActiveAbilities(t *testing.T) {
	f, sync := setup(t)
	p := member(f, "workforce", "rally")
	p.Ability("commerce").Purchased[1] = true

	sync.Register(p)
	assert.Equal(t, 1, f.Tech(catalog.TechWorkforce))
	assert.Equal(t, 0, f.Tech(catalog.TechCommerce), "inactive slot does not count")
	assert.Equal(t, map[catalog.Tech]int{catalog.TechWorkforce: 1}, f.Techs())

	sync.Deregister(p)
	assert.False(t, f.HasTech(catalog.TechWorkforce))
}

func TestRegister_SkipsOfflineUnaffiliatedAndNPC(t *testing.T) {
	f, sync := setup(t)

	offline := member(f, "workforce")
	offline.Playing = false
	sync.Register(offline)

	loner := member(f, "workforce")
	loner.FactionID = uuid.Nil
	sync.Register(loner)

	npc := member(f, "workforce")
	npc.IsNPC = true
	sync.Register(npc)

	assert.Equal(t, 0, f.Tech(catalog.TechWorkforce))
}

func TestRegister_UnknownFactionLogs(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sync := faction.NewSynchronizer(faction.NewRegistry(), testCatalog(t), zap.New(core))
	p := progress.NewPlayer(1, "m")
	p.FactionID = uuid.New()
	p.Playing = true

	sync.Register(p)
	assert.Equal(t, 1, logs.FilterMessage("player references unknown faction").Len())
}

func TestBracket_TracksOwnershipChange(t *testing.T) {
	f, sync := setup(t)
	p := member(f, "workforce")
	sync.Register(p)

	sync.Bracket(p, func() {
		p.Ability("workforce").Purchased[0] = false
		p.Ability("commerce").Purchased[0] = true
	})

	assert.Equal(t, 0, f.Tech(catalog.TechWorkforce))
	assert.Equal(t, 1, f.Tech(catalog.TechCommerce))
}

// TestBracket_MatchesFreshRegistration checks that after any sequence of
// bracketed mutations the counters equal what registering the final state
// from scratch would produce.
func TestBracket_MatchesFreshRegistration(t *testing.T) {
	ids := []string{"workforce", "commerce", "rally"}
	rapid.Check(t, func(rt *rapid.T) {
		f, sync := setup(rt)
		p := member(f)
		sync.Register(p)

		steps := rapid.IntRange(0, 20).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			id := rapid.SampledFrom(ids).Draw(rt, "ability")
			slot := rapid.IntRange(0, 1).Draw(rt, "slot")
			flip := rapid.Bool().Draw(rt, "swap")
			sync.Bracket(p, func() {
				o := p.Ability(id)
				o.Purchased[slot] = !o.Purchased[slot]
				if flip {
					p.CurrentSet = 1 - p.CurrentSet
				}
			})
		}

		fresh, freshSync := setup(rt)
		q := p.Clone()
		q.FactionID = fresh.ID
		freshSync.Register(q)
		assert.Equal(rt, fresh.Techs(), f.Techs())
	})
}

func TestRegistry(t *testing.T) {
	reg := faction.NewRegistry()
	b, a := faction.New("Blue"), faction.New("Amber")
	reg.Add(b)
	reg.Add(a)

	got, err := reg.Get(b.ID)
	require.NoError(t, err)
	assert.Same(t, b, got)

	_, err = reg.Get(uuid.New())
	assert.ErrorIs(t, err, faction.ErrNotFound)

	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, "Amber", all[0].Name)
}
