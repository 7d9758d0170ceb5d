package catalog

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Holder publishes the current Catalog to readers and notifies subscribers
// when authoring delivers a replacement.
type Holder struct {
	current atomic.Pointer[Catalog]

	mu   sync.Mutex
	subs []func(*Catalog)
}

// NewHolder returns a Holder serving c.
//
// Precondition: c must be non-nil.
func NewHolder(c *Catalog) *Holder {
	h := &Holder{}
	h.current.Store(c)
	return h
}

// Current returns the catalog in effect.
func (h *Holder) Current() *Catalog {
	return h.current.Load()
}

// Subscribe registers fn to run after every successful Publish.
func (h *Holder) Subscribe(fn func(*Catalog)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs = append(h.subs, fn)
}

// Publish validates the definitions, swaps them in, and runs every subscriber
// with the new catalog.
//
// Postcondition: on error the previous catalog stays in effect and no
// subscriber runs.
func (h *Holder) Publish(skills []*Skill, abilities []*Ability) (*Catalog, error) {
	c, err := New(skills, abilities)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.current.Store(c)
	subs := slices.Clone(h.subs)
	h.mu.Unlock()

	for _, fn := range subs {
		fn(c)
	}
	return c, nil
}
