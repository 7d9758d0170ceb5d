package catalog

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// abilityDef is an ability declared inline under its skill.
type abilityDef struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Level       int    `yaml:"level"`
	Prereq      string `yaml:"prereq"`
	Tech        Tech   `yaml:"tech"`
	Unreleased  bool   `yaml:"unreleased"`
	Use         Usage  `yaml:"use"`
}

type skillDef struct {
	ID           string       `yaml:"id"`
	Name         string       `yaml:"name"`
	Abbrev       string       `yaml:"abbrev"`
	Description  string       `yaml:"description"`
	MaxLevel     int          `yaml:"max_level"`
	MinDropLevel int          `yaml:"min_drop_level"`
	Unreleased   bool         `yaml:"unreleased"`
	Basic        bool         `yaml:"basic"`
	Abilities    []abilityDef `yaml:"abilities"`
}

// contentFile is one YAML document: optionally a skill with its abilities,
// plus any skill-less abilities.
type contentFile struct {
	Skill     *skillDef  `yaml:"skill"`
	Abilities []*Ability `yaml:"abilities"`
}

// LoadDirectory reads every *.yaml file in dir and builds a validated Catalog.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a Catalog, or an error naming the first unreadable
// file or every invariant violation.
func LoadDirectory(dir string) (*Catalog, error) {
	skills, abilities, err := ReadDirectory(dir)
	if err != nil {
		return nil, err
	}
	return New(skills, abilities)
}

// ReadDirectory parses the definitions in dir without validating them, so
// they can be handed to Holder.Publish.
func ReadDirectory(dir string) ([]*Skill, []*Ability, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading catalog dir %q: %w", dir, err)
	}
	var (
		skills    []*Skill
		abilities []*Ability
	)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("reading %q: %w", path, err)
		}
		var f contentFile
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		abilities = append(abilities, f.Abilities...)
		if f.Skill == nil {
			continue
		}
		s := &Skill{
			ID:           f.Skill.ID,
			Name:         f.Skill.Name,
			Abbrev:       f.Skill.Abbrev,
			Description:  f.Skill.Description,
			MaxLevel:     f.Skill.MaxLevel,
			MinDropLevel: f.Skill.MinDropLevel,
			Unreleased:   f.Skill.Unreleased,
			Basic:        f.Skill.Basic,
		}
		for _, a := range f.Skill.Abilities {
			abilities = append(abilities, &Ability{
				ID:          a.ID,
				Name:        a.Name,
				Description: a.Description,
				Tech:        a.Tech,
				Unreleased:  a.Unreleased,
				Use:         a.Use,
			})
			s.Assignments = append(s.Assignments, Assignment{Ability: a.ID, RequiredLevel: a.Level, Prereq: a.Prereq})
		}
		skills = append(skills, s)
	}
	return skills, abilities, nil
}
