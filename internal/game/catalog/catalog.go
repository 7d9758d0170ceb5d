// Package catalog holds the immutable skill and ability definitions that the
// progression engine reads. A Catalog is built once, validated, and then
// shared read-only; replacing content means publishing a new Catalog.
package catalog

import (
	"sort"
	"strings"
)

// Tech names a faction technology counter that an ability contributes to.
type Tech string

const (
	TechGlassblowing  Tech = "glassblowing"
	TechCityLights    Tech = "city_lights"
	TechLocks         Tech = "locks"
	TechApiaries      Tech = "apiaries"
	TechSeaport       Tech = "seaport"
	TechWorkforce     Tech = "workforce"
	TechProminence    Tech = "prominence"
	TechCommerce      Tech = "commerce"
	TechPortals       Tech = "portals"
	TechMasterPortals Tech = "master_portals"
	TechSkilledLabor  Tech = "skilled_labor"
	TechTradeRoutes   Tech = "trade_routes"
)

// Techs lists every known technology in display order.
var Techs = []Tech{
	TechGlassblowing, TechCityLights, TechLocks, TechApiaries, TechSeaport, TechWorkforce,
	TechProminence, TechCommerce, TechPortals, TechMasterPortals, TechSkilledLabor, TechTradeRoutes,
}

// Tier caps. A skill stops gaining at each of these until the player chooses to specialize.
const (
	BasicSkillCap     = 50
	SpecialtySkillCap = 75
	MaxSkillCap       = 100
)

// Ability is a discrete unlockable capability.
type Ability struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Tech        Tech   `yaml:"tech"` // faction counter fed while active; empty for none
	Unreleased  bool   `yaml:"unreleased"`
	Use         Usage  `yaml:"use"`
}

// Pools an ability may draw on.
var Pools = []string{"health", "move", "mana", "blood"}

// Usage is what invoking an ability costs and yields. The zero value is a
// free ability with no cooldown.
type Usage struct {
	Pool     string  `yaml:"pool"`
	Cost     int     `yaml:"cost"`
	Cooldown string  `yaml:"cooldown"`
	Seconds  int     `yaml:"seconds"`
	Effect   string  `yaml:"effect"` // standing effect started on use
	Ticks    int     `yaml:"ticks"`  // 0 lasts until the ability is sold
	Exp      float64 `yaml:"exp"`    // ability experience per use
}

// Assignment binds an ability to its skill at a required level, optionally
// below a prerequisite ability of the same skill.
type Assignment struct {
	Ability       string `yaml:"ability"`
	RequiredLevel int    `yaml:"level"`
	Prereq        string `yaml:"prereq"`
}

// Skill is a leveled proficiency with its ordered ability assignments.
type Skill struct {
	ID           string       `yaml:"id"`
	Name         string       `yaml:"name"`
	Abbrev       string       `yaml:"abbrev"`
	Description  string       `yaml:"description"`
	MaxLevel     int          `yaml:"max_level"`
	MinDropLevel int          `yaml:"min_drop_level"`
	Unreleased   bool         `yaml:"unreleased"`
	Basic        bool         `yaml:"basic"` // may grow from zero regardless of the new-skill allowance
	Assignments  []Assignment `yaml:"abilities"`
}

// Placement is where an ability sits in the skill forest.
type Placement struct {
	Skill      *Skill
	Assignment Assignment
}

// Catalog is a validated, read-only snapshot of all skills and abilities.
type Catalog struct {
	skills    []*Skill
	skillByID map[string]*Skill
	abilities []*Ability
	abilityBy map[string]*Ability
	placement map[string]Placement
	children  map[string][]string
}

// New validates the definitions and builds a Catalog over them.
//
// Precondition: callers must not mutate skills or abilities after the call.
// Postcondition: Returns a Catalog, or an error joining every invariant violation.
func New(skills []*Skill, abilities []*Ability) (*Catalog, error) {
	if err := Validate(skills, abilities); err != nil {
		return nil, err
	}
	c := &Catalog{
		skills:    append([]*Skill(nil), skills...),
		skillByID: make(map[string]*Skill, len(skills)),
		abilities: append([]*Ability(nil), abilities...),
		abilityBy: make(map[string]*Ability, len(abilities)),
		placement: make(map[string]Placement),
		children:  make(map[string][]string),
	}
	sort.SliceStable(c.skills, func(i, j int) bool { return c.skills[i].Name < c.skills[j].Name })
	sort.SliceStable(c.abilities, func(i, j int) bool { return c.abilities[i].Name < c.abilities[j].Name })
	for _, s := range c.skills {
		c.skillByID[s.ID] = s
		for _, a := range s.Assignments {
			c.placement[a.Ability] = Placement{Skill: s, Assignment: a}
			if a.Prereq != "" {
				c.children[a.Prereq] = append(c.children[a.Prereq], a.Ability)
			}
		}
	}
	for _, a := range c.abilities {
		c.abilityBy[a.ID] = a
	}
	return c, nil
}

// Empty returns a Catalog with no content.
func Empty() *Catalog {
	c, _ := New(nil, nil)
	return c
}

// Skills returns released skills ordered by name.
func (c *Catalog) Skills() []*Skill {
	out := make([]*Skill, 0, len(c.skills))
	for _, s := range c.skills {
		if !s.Unreleased {
			out = append(out, s)
		}
	}
	return out
}

// Abilities returns released abilities ordered by name.
func (c *Catalog) Abilities() []*Ability {
	out := make([]*Ability, 0, len(c.abilities))
	for _, a := range c.abilities {
		if !a.Unreleased {
			out = append(out, a)
		}
	}
	return out
}

// SkillByID returns the released skill with the given id.
func (c *Catalog) SkillByID(id string) (*Skill, bool) {
	s, ok := c.skillByID[id]
	if !ok || s.Unreleased {
		return nil, false
	}
	return s, true
}

// AbilityByID returns the released ability with the given id.
func (c *Catalog) AbilityByID(id string) (*Ability, bool) {
	a, ok := c.abilityBy[id]
	if !ok || a.Unreleased {
		return nil, false
	}
	return a, true
}

// Ability returns the ability with the given id whether or not it is
// released. Bookkeeping over records players already hold uses this.
func (c *Catalog) Ability(id string) (*Ability, bool) {
	a, ok := c.abilityBy[id]
	return a, ok
}

// Placement returns the skill and assignment an ability belongs to. The
// boolean is false for skill-less abilities.
func (c *Catalog) Placement(abilityID string) (Placement, bool) {
	p, ok := c.placement[abilityID]
	return p, ok
}

// Assignments returns the ordered assignments of a skill.
func (c *Catalog) Assignments(skillID string) []Assignment {
	s, ok := c.skillByID[skillID]
	if !ok {
		return nil
	}
	return s.Assignments
}

// Children returns the abilities whose prerequisite is abilityID, in assignment order.
func (c *Catalog) Children(abilityID string) []string {
	return c.children[abilityID]
}

// Roots returns the assignments of a skill that have no prerequisite.
func (c *Catalog) Roots(skillID string) []Assignment {
	var out []Assignment
	for _, a := range c.Assignments(skillID) {
		if a.Prereq == "" {
			out = append(out, a)
		}
	}
	return out
}

// LevelZeroAbilities returns every released ability assigned at level 0
// to a released skill. These are granted to every player in both slots.
func (c *Catalog) LevelZeroAbilities() []string {
	var out []string
	for _, s := range c.Skills() {
		for _, a := range s.Assignments {
			if a.RequiredLevel != 0 {
				continue
			}
			if ab, ok := c.abilityBy[a.Ability]; ok && !ab.Unreleased {
				out = append(out, a.Ability)
			}
		}
	}
	return out
}

// SkillByName finds a released skill by name or abbreviation.
func (c *Catalog) SkillByName(name string) (*Skill, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}
	skills := c.Skills()
	for _, s := range skills {
		if strings.EqualFold(s.Name, name) || strings.EqualFold(s.Abbrev, name) {
			return s, true
		}
	}
	i := bestAbbrev(name, len(skills), func(i int) string { return skills[i].Name })
	if i < 0 {
		return nil, false
	}
	return skills[i], true
}

// AbilityByName finds a released ability by name.
func (c *Catalog) AbilityByName(name string) (*Ability, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}
	abilities := c.Abilities()
	for _, a := range abilities {
		if strings.EqualFold(a.Name, name) {
			return a, true
		}
	}
	i := bestAbbrev(name, len(abilities), func(i int) string { return abilities[i].Name })
	if i < 0 {
		return nil, false
	}
	return abilities[i], true
}

// bestAbbrev returns the index of the candidate for which every word of
// input abbreviates a distinct word of the candidate, in order. When several
// candidates match, the one that leaves the fewest unmatched characters
// wins; a tie is ambiguous and yields -1.
func bestAbbrev(input string, n int, nameAt func(int) string) int {
	words := strings.Fields(strings.ToLower(input))
	best, bestSlack, tie := -1, 0, false
	for i := 0; i < n; i++ {
		name := strings.ToLower(nameAt(i))
		if !abbreviates(words, strings.Fields(name)) {
			continue
		}
		slack := len(name) - len(strings.Join(words, " "))
		switch {
		case best < 0 || slack < bestSlack:
			best, bestSlack, tie = i, slack, false
		case slack == bestSlack:
			tie = true
		}
	}
	if tie {
		return -1
	}
	return best
}

func abbreviates(words, target []string) bool {
	if len(words) == 0 {
		return false
	}
	j := 0
	for _, w := range words {
		for j < len(target) && !strings.HasPrefix(target[j], w) {
			j++
		}
		if j == len(target) {
			return false
		}
		j++
	}
	return true
}
