package catalog

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalid wraps every catalog invariant violation.
var ErrInvalid = errors.New("catalog: invalid definition")

// Validate checks the cross-reference invariants of a skill/ability set.
//
// Postcondition: Returns nil, or an error joining every violation; each
// joined error matches errors.Is(err, ErrInvalid).
func Validate(skills []*Skill, abilities []*Ability) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	known := make(map[string]*Ability, len(abilities))
	for _, a := range abilities {
		switch {
		case a == nil:
			fail("nil ability")
			continue
		case a.ID == "":
			fail("ability %q has an empty id", a.Name)
		case known[a.ID] != nil:
			fail("duplicate ability id %q", a.ID)
		}
		if a.Tech != "" && !slices.Contains(Techs, a.Tech) {
			fail("ability %q names unknown tech %q", a.ID, a.Tech)
		}
		if u := a.Use; u.Pool != "" && !slices.Contains(Pools, u.Pool) {
			fail("ability %q draws on unknown pool %q", a.ID, u.Pool)
		}
		if u := a.Use; u.Cost < 0 || u.Seconds < 0 || u.Ticks < 0 || u.Exp < 0 {
			fail("ability %q has a negative usage value", a.ID)
		}
		known[a.ID] = a
	}

	owner := make(map[string]string)
	seenSkill := make(map[string]bool, len(skills))
	for _, s := range skills {
		if s == nil {
			fail("nil skill")
			continue
		}
		if s.ID == "" {
			fail("skill %q has an empty id", s.Name)
		}
		if seenSkill[s.ID] {
			fail("duplicate skill id %q", s.ID)
		}
		seenSkill[s.ID] = true
		if s.MaxLevel < 1 || s.MaxLevel > MaxSkillCap {
			fail("skill %q max level %d outside 1-%d", s.ID, s.MaxLevel, MaxSkillCap)
		}
		if s.MinDropLevel < 0 || s.MinDropLevel > s.MaxLevel {
			fail("skill %q min drop level %d outside 0-%d", s.ID, s.MinDropLevel, s.MaxLevel)
		}

		local := make(map[string]Assignment, len(s.Assignments))
		for _, a := range s.Assignments {
			if _, ok := known[a.Ability]; !ok {
				fail("skill %q assigns unknown ability %q", s.ID, a.Ability)
			}
			if prev, ok := owner[a.Ability]; ok {
				fail("ability %q assigned to both %q and %q", a.Ability, prev, s.ID)
			}
			owner[a.Ability] = s.ID
			if a.RequiredLevel < 0 || a.RequiredLevel > s.MaxLevel {
				fail("skill %q assigns %q at level %d outside 0-%d", s.ID, a.Ability, a.RequiredLevel, s.MaxLevel)
			}
			local[a.Ability] = a
		}

		for _, a := range s.Assignments {
			if a.Prereq == "" {
				continue
			}
			if a.Prereq == a.Ability {
				fail("ability %q in skill %q is its own prerequisite", a.Ability, s.ID)
				continue
			}
			pre, ok := local[a.Prereq]
			if !ok {
				fail("ability %q in skill %q requires %q which is not assigned to the same skill", a.Ability, s.ID, a.Prereq)
				continue
			}
			if a.RequiredLevel < pre.RequiredLevel {
				fail("ability %q in skill %q requires level %d below its prerequisite %q at %d",
					a.Ability, s.ID, a.RequiredLevel, a.Prereq, pre.RequiredLevel)
			}
		}

		if cyc := findCycle(local); cyc != "" {
			fail("skill %q has a prerequisite cycle through %q", s.ID, cyc)
		}
	}

	return errors.Join(errs...)
}

// findCycle walks each prerequisite chain and returns an ability on a
// cycle, or "" when every chain terminates.
func findCycle(local map[string]Assignment) string {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int, len(local))
	keys := make([]string, 0, len(local))
	for k := range local {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, start := range keys {
		var path []string
		id := start
		for id != "" && state[id] == unvisited {
			state[id] = active
			path = append(path, id)
			next, ok := local[id]
			if !ok {
				break
			}
			id = next.Prereq
		}
		if id != "" && state[id] == active {
			return id
		}
		for _, p := range path {
			state[p] = done
		}
	}
	return ""
}
