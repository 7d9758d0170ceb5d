package progression_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/advancement/internal/game/catalog"
	"github.com/cory-johannsen/advancement/internal/game/dice"
	"github.com/cory-johannsen/advancement/internal/game/progression"
)

func TestPurchase_Refusals(t *testing.T) {
	h := standardHarness(t, dice.NewFixedSource(1))
	p := h.player(1)
	p.Skill("survival").Level = 10

	assert.ErrorIs(t, h.engine.Purchase(p, "nope"), progression.ErrUnknownAbility)
	assert.ErrorIs(t, h.engine.Purchase(p, "vampirism"), progression.ErrNotInSkill)
	assert.ErrorIs(t, h.engine.Purchase(p, "hunt"), progression.ErrMissingPrereq)
	assert.ErrorIs(t, h.engine.Purchase(p, "track"), progression.ErrLevelTooLow)

	require.NoError(t, h.engine.Purchase(p, "forage"))
	assert.ErrorIs(t, h.engine.Purchase(p, "forage"), progression.ErrAlreadyOwned)
	require.NoError(t, h.engine.Purchase(p, "hunt"))
	require.NoError(t, h.engine.Purchase(p, "trap"))
	assert.Equal(t, 0, h.engine.PointsAvailable(p, "survival"))
	assert.ErrorIs(t, h.engine.Purchase(p, "skin"), progression.ErrNoPoints)

	npc := h.player(2)
	npc.IsNPC = true
	assert.ErrorIs(t, h.engine.Purchase(npc, "forage"), progression.ErrNPC)
}

func TestPurchase_LevelZeroIsFree(t *testing.T) {
	h := standardHarness(t, dice.NewFixedSource(1))
	p := h.player(1)

	require.NoError(t, h.engine.Purchase(p, "gather"))
	assert.True(t, p.OwnsActive("gather"))
	assert.Equal(t, 0, h.engine.PointsSpent(p, "survival"))
}

func TestPurchase_ImmortalBypassesCost(t *testing.T) {
	skills, abilities := standardCatalog()
	cfg := progression.DefaultConfig()
	cfg.Thresholds = []int{100}
	cfg.DeadEndCheckpoint = 100
	h := newHarness(t, cfg, dice.NewFixedSource(1), skills, abilities)

	mortal := h.player(1)
	mortal.Skill("survival").Level = 10
	assert.ErrorIs(t, h.engine.Purchase(mortal, "forage"), progression.ErrNoPoints)

	god := h.player(2)
	god.Immortal = true
	god.Skill("survival").Level = 10
	require.NoError(t, h.engine.Purchase(god, "forage"))
	require.NoError(t, h.engine.Purchase(god, "trap"))
	assert.ErrorIs(t, h.engine.Purchase(god, "skin"), progression.ErrLevelTooLow, "level rules still apply")
}

func TestPurchaseAndSell_TrackFactionTechnology(t *testing.T) {
	h := standardHarness(t, dice.NewFixedSource(1))
	p := h.online(h.player(1))
	p.Skill("survival").Level = 10

	require.NoError(t, h.engine.Purchase(p, "forage"))
	assert.Equal(t, 1, h.faction.Tech(catalog.TechApiaries))
	assert.Equal(t, 1, h.techs.registers)
	assert.Equal(t, 1, h.techs.deregister)
	assert.Empty(t, h.sales.calls)

	require.NoError(t, h.engine.Sell(p, "forage"))
	assert.Equal(t, 0, h.faction.Tech(catalog.TechApiaries))
	assert.False(t, p.OwnsActive("forage"))
	assert.Equal(t, 1, h.sales.count("forage"))
	assert.Equal(t, freshCounters(h, p), h.faction.Techs())
}

func TestSell_Refusals(t *testing.T) {
	h := standardHarness(t, dice.NewFixedSource(1))
	p := h.player(1)
	assert.ErrorIs(t, h.engine.Sell(p, "nope"), progression.ErrUnknownAbility)
	assert.ErrorIs(t, h.engine.Sell(p, "forage"), progression.ErrNotOwned)

	p.Ability("forage").Purchased[1] = true
	assert.ErrorIs(t, h.engine.Sell(p, "forage"), progression.ErrNotOwned, "owned only in the inactive set")
	assert.Empty(t, h.sales.calls)
}

func TestSell_KeepsFreeAndSkillLessAbilities(t *testing.T) {
	h := standardHarness(t, dice.NewFixedSource(1))
	p := h.player(1)
	p.Ability("vampirism").Purchased = [2]bool{true, true}
	p.Ability("gather").Purchased = [2]bool{true, true}
	h.online(p)
	before := h.faction.Techs()

	assert.ErrorIs(t, h.engine.Sell(p, "vampirism"), progression.ErrNotInSkill)
	assert.ErrorIs(t, h.engine.Sell(p, "gather"), progression.ErrFreeAbility)
	assert.Equal(t, [2]bool{true, true}, p.Ability("vampirism").Purchased)
	assert.Equal(t, [2]bool{true, true}, p.Ability("gather").Purchased, "free abilities stay in both sets")
	assert.Equal(t, before, h.faction.Techs())
	assert.Empty(t, h.sales.calls)
}

func TestSell_RefusesPrerequisiteOfOwnedAbility(t *testing.T) {
	h := standardHarness(t, dice.NewFixedSource(1))
	p := h.player(1)
	p.Skill("survival").Level = 25
	for _, id := range []string{"forage", "hunt", "track"} {
		require.NoError(t, h.engine.Purchase(p, id))
	}

	assert.ErrorIs(t, h.engine.Sell(p, "forage"), progression.ErrHasDependents)
	assert.ErrorIs(t, h.engine.Sell(p, "hunt"), progression.ErrHasDependents)
	assert.True(t, p.OwnsActive("forage"))
	assert.Empty(t, h.sales.calls)

	require.NoError(t, h.engine.Sell(p, "track"))
	require.NoError(t, h.engine.Sell(p, "hunt"))
	require.NoError(t, h.engine.Sell(p, "forage"))
	assert.Equal(t, 0, h.engine.PointsSpent(p, "survival"))
}

func TestReset(t *testing.T) {
	h := standardHarness(t, dice.NewFixedSource(1))
	p := h.player(1)
	p.Skill("survival").Level = 10
	for _, id := range []string{"gather", "forage", "hunt", "trap"} {
		p.Ability(id).Purchased[0] = true
	}
	p.Ability("forage").Purchased[1] = true

	assert.ErrorIs(t, h.engine.Reset(p, "survival"), progression.ErrNoResets)
	assert.ErrorIs(t, h.engine.Reset(p, "weaving"), progression.ErrUnknownSkill)

	p.Skill("survival").Resets = 1
	require.NoError(t, h.engine.Reset(p, "survival"))
	assert.Equal(t, 0, p.Skill("survival").Resets)
	assert.Equal(t, 0, h.engine.PointsSpent(p, "survival"))
	assert.True(t, p.OwnsActive("gather"), "level-zero abilities are kept")
	assert.True(t, p.Owns("forage", 1), "inactive set untouched")
	for _, id := range []string{"forage", "hunt", "trap"} {
		assert.Equal(t, 1, h.sales.count(id), id)
	}
}

func TestReset_ImmortalNeedsNoToken(t *testing.T) {
	h := standardHarness(t, dice.NewFixedSource(1))
	p := h.player(1)
	p.Immortal = true
	p.Skill("survival").Level = 10
	p.Ability("forage").Purchased[0] = true

	require.NoError(t, h.engine.Reset(p, "survival"))
	assert.False(t, p.OwnsActive("forage"))
	assert.Equal(t, 0, p.Skill("survival").Resets)
}

func TestDropLevels(t *testing.T) {
	h := standardHarness(t, dice.NewFixedSource(1))
	p := h.player(1)

	cases := []struct {
		level int
		want  []int
	}{
		{0, nil},
		{30, []int{0}},
		{50, []int{0}},
		{60, []int{0, 50}},
		{100, []int{0, 50, 75}},
	}
	for _, tc := range cases {
		p.Skill("survival").Level = tc.level
		assert.Equal(t, tc.want, h.engine.DropLevels(p, "survival"), "level %d", tc.level)
	}
}

func TestDrop(t *testing.T) {
	h := standardHarness(t, dice.NewFixedSource(1))
	p := h.player(1)
	p.Skill("survival").Level = 60
	p.Ability("forage").Purchased[0] = true
	p.Ability("camp").Purchased[0] = true

	assert.ErrorIs(t, h.engine.Drop(p, "survival", 55), progression.ErrInvalidDropLevel)
	assert.Equal(t, 60, p.SkillLevel("survival"))

	require.NoError(t, h.engine.Drop(p, "survival", 50))
	assert.Equal(t, 50, p.SkillLevel("survival"))
	assert.False(t, p.OwnsActive("forage"))
	assert.False(t, p.OwnsActive("camp"))
	assert.Equal(t, 0, p.Skill("survival").Resets, "a drop onto a cap earns nothing")
	assert.Equal(t, 1, h.sales.count("camp"))
}

func TestSpecialize(t *testing.T) {
	h := standardHarness(t, dice.NewFixedSource(1))
	p := h.player(1)

	require.NoError(t, h.engine.SetSkill(p, "survival", 49))
	assert.ErrorIs(t, h.engine.Specialize(p, "survival"), progression.ErrNotAtCap)

	require.NoError(t, h.engine.SetSkill(p, "survival", 50))
	require.NoError(t, h.engine.Specialize(p, "survival"))
	assert.Equal(t, 51, p.SkillLevel("survival"))
	assert.False(t, h.engine.IsAnyCap(p, "survival"))
}

func TestSpecialize_Limits(t *testing.T) {
	skills, abilities := standardCatalog()
	cfg := progression.DefaultConfig()
	cfg.SpecialtyAllowed = 1
	cfg.BonusSpecialtyAllowed = 1
	h := newHarness(t, cfg, dice.NewFixedSource(1), skills, abilities)
	p := h.player(1)

	require.NoError(t, h.engine.SetSkill(p, "survival", 60))
	require.NoError(t, h.engine.SetSkill(p, "empire", 50))
	require.False(t, p.CanGetBonusSkills)
	assert.ErrorIs(t, h.engine.Specialize(p, "empire"), progression.ErrSpecialtyLimit)

	p.CanGetBonusSkills = true
	require.NoError(t, h.engine.Specialize(p, "empire"))
	assert.Equal(t, 51, p.SkillLevel("empire"))
}

func TestSpecialize_PastSpecialtyCap(t *testing.T) {
	skills, abilities := standardCatalog()
	skills = append(skills, &catalog.Skill{ID: "lore", Name: "Lore", MaxLevel: 100})
	h := newHarness(t, progression.DefaultConfig(), dice.NewFixedSource(1), skills, abilities)
	p := h.player(1)

	require.NoError(t, h.engine.SetSkill(p, "survival", 80))
	require.NoError(t, h.engine.SetSkill(p, "empire", 80))
	require.NoError(t, h.engine.SetSkill(p, "lore", 75))
	assert.ErrorIs(t, h.engine.Specialize(p, "lore"), progression.ErrSpecialtyLimit)

	require.NoError(t, h.engine.SetSkill(p, "empire", 75))
	require.NoError(t, h.engine.Specialize(p, "lore"))
	assert.Equal(t, 76, p.SkillLevel("lore"))
}

func TestToggleNoSkill(t *testing.T) {
	h := standardHarness(t, dice.NewFixedSource(1))
	p := h.player(1)

	on, err := h.engine.ToggleNoSkill(p, "survival")
	require.NoError(t, err)
	assert.True(t, on)
	assert.False(t, h.engine.GainSkill(p, "survival", 1))

	on, err = h.engine.ToggleNoSkill(p, "survival")
	require.NoError(t, err)
	assert.False(t, on)
	assert.True(t, h.engine.GainSkill(p, "survival", 1))

	_, err = h.engine.ToggleNoSkill(p, "weaving")
	assert.ErrorIs(t, err, progression.ErrUnknownSkill)
}
