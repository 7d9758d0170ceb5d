package condition_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/advancement/internal/game/condition"
)

func nightsight() *condition.Def {
	return &condition.Def{ID: "nightsight", Name: "Nightsight", Kind: condition.KindAffect, Ability: "nightsight", DurationType: "permanent"}
}

func boost() *condition.Def {
	return &condition.Def{ID: "boost", Name: "Boost", Kind: condition.KindAffect, Ability: "boost", DurationType: "ticks", MaxStacks: 3}
}

func mistForm() *condition.Def {
	return &condition.Def{
		ID: "mist_form", Name: "Mist Form", Kind: condition.KindMorph, Ability: "mist_form",
		DurationType: "permanent", RestrictAbilities: []string{"bash", "ride"},
	}
}

func TestActiveSet_Apply_Permanent(t *testing.T) {
	s := condition.NewActiveSet()
	require.NoError(t, s.Apply(nightsight(), 1, -1))
	assert.True(t, s.Has("nightsight"))
	assert.Equal(t, 1, s.Stacks("nightsight"))
}

func TestActiveSet_Apply_NilDef(t *testing.T) {
	assert.Error(t, condition.NewActiveSet().Apply(nil, 1, 1))
}

func TestActiveSet_Apply_Unstackable(t *testing.T) {
	s := condition.NewActiveSet()
	require.NoError(t, s.Apply(nightsight(), 3, -1))
	require.NoError(t, s.Apply(nightsight(), 3, -1))
	assert.Equal(t, 1, s.Stacks("nightsight"))
}

func TestActiveSet_Apply_RefreshExtendsOnly(t *testing.T) {
	s := condition.NewActiveSet()
	b := boost()
	require.NoError(t, s.Apply(b, 1, 5))
	require.NoError(t, s.Apply(b, 1, 2))
	assert.Equal(t, 2, s.Stacks("boost"))
	assert.Equal(t, 5, s.All()[0].TicksRemaining)

	require.NoError(t, s.Apply(b, 5, -1))
	assert.Equal(t, 3, s.Stacks("boost"))
	assert.Equal(t, -1, s.All()[0].TicksRemaining)
}

func TestActiveSet_Tick(t *testing.T) {
	s := condition.NewActiveSet()
	require.NoError(t, s.Apply(boost(), 1, 2))
	require.NoError(t, s.Apply(nightsight(), 1, -1))

	assert.Empty(t, s.Tick())
	assert.Equal(t, []string{"boost"}, s.Tick())
	assert.False(t, s.Has("boost"))
	assert.True(t, s.Has("nightsight"))
}

func TestActiveSet_EndForAbility(t *testing.T) {
	s := condition.NewActiveSet()
	require.NoError(t, s.Apply(boost(), 1, 5))
	require.NoError(t, s.Apply(mistForm(), 1, -1))

	ended := s.EndForAbility("mist_form")
	require.Len(t, ended, 1)
	assert.Equal(t, "mist_form", ended[0].ID)
	assert.False(t, s.Has("mist_form"))
	assert.True(t, s.Has("boost"))
	assert.Empty(t, s.EndForAbility("mist_form"), "second end is a no-op")
}

func TestActiveSet_MorphAndRestrictions(t *testing.T) {
	s := condition.NewActiveSet()
	_, ok := s.Morph()
	assert.False(t, ok)
	assert.False(t, s.IsAbilityRestricted("bash"))

	require.NoError(t, s.Apply(mistForm(), 1, -1))
	m, ok := s.Morph()
	require.True(t, ok)
	assert.Equal(t, "mist_form", m.ID)
	assert.True(t, s.IsAbilityRestricted("bash"))
	assert.False(t, s.IsAbilityRestricted("fly"))
}

func TestActiveSet_Remove_NotPresent_NoOp(t *testing.T) {
	s := condition.NewActiveSet()
	s.Remove("nonexistent")
	assert.False(t, s.Has("nonexistent"))
	assert.Zero(t, s.Len())
}

func TestPropertyActiveSet_StacksWithinLimit(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxStacks := rapid.IntRange(0, 4).Draw(t, "max_stacks")
		def := &condition.Def{ID: "x", Name: "X", DurationType: "ticks", MaxStacks: maxStacks}
		s := condition.NewActiveSet()
		for i, n := 0, rapid.IntRange(1, 6).Draw(t, "applies"); i < n; i++ {
			require.NoError(t, s.Apply(def, rapid.IntRange(0, 8).Draw(t, "stacks"), rapid.IntRange(-1, 10).Draw(t, "ticks")))
		}
		got := s.Stacks("x")
		assert.GreaterOrEqual(t, got, 1)
		assert.LessOrEqual(t, got, max(1, maxStacks))
	})
}

func TestPropertyActiveSet_TickNeverBelowMinusOne(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := condition.NewActiveSet()
		require.NoError(t, s.Apply(boost(), 1, rapid.IntRange(-1, 10).Draw(t, "ticks")))
		for i, n := 0, rapid.IntRange(1, 20).Draw(t, "rounds"); i < n; i++ {
			s.Tick()
		}
		for _, a := range s.All() {
			assert.GreaterOrEqual(t, a.TicksRemaining, -1)
		}
	})
}
