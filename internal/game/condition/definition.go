package condition

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind classifies a standing effect by what ending it undoes.
type Kind string

const (
	KindAffect Kind = "affect" // a timed or permanent aura
	KindMorph  Kind = "morph"  // an alternate form
	KindMount  Kind = "mount"  // riding
	KindGear   Kind = "gear"   // conjured equipment held while the ability is known
)

// Def is the static definition of a standing effect, loaded from YAML.
type Def struct {
	ID                string   `yaml:"id"`
	Name              string   `yaml:"name"`
	Description       string   `yaml:"description"`
	Kind              Kind     `yaml:"kind"`
	Ability           string   `yaml:"ability"`       // sustaining ability; empty when none
	DurationType      string   `yaml:"duration_type"` // "ticks" | "permanent"
	MaxStacks         int      `yaml:"max_stacks"`    // 0 = unstackable
	EndMessage        string   `yaml:"end_message"`
	RestrictAbilities []string `yaml:"restrict_abilities"`
}

// Registry holds all known effect definitions keyed by ID.
type Registry struct {
	defs map[string]*Def
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Def)}
}

// Register adds def, replacing any entry with the same ID.
//
// Precondition: def must not be nil and def.ID must not be empty.
func (r *Registry) Register(def *Def) {
	r.defs[def.ID] = def
}

// Get returns the definition for id.
func (r *Registry) Get(id string) (*Def, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// All returns every definition ordered by ID.
func (r *Registry) All() []*Def {
	out := make([]*Def, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ForAbility returns the definitions sustained by abilityID.
func (r *Registry) ForAbility(abilityID string) []*Def {
	var out []*Def
	for _, d := range r.All() {
		if d.Ability == abilityID {
			out = append(out, d)
		}
	}
	return out
}

// LoadDirectory reads every *.yaml file in dir as one Def.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a non-nil Registry, or an error naming the first bad file.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading effect dir %q: %w", dir, err)
	}
	reg := NewRegistry()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		var def Def
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		if def.ID == "" {
			return nil, fmt.Errorf("parsing %q: missing id", path)
		}
		reg.Register(&def)
	}
	return reg, nil
}
