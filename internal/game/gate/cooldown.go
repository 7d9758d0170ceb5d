package gate

import (
	"sync"
	"time"
)

type cooldownKey struct {
	actor string
	kind  Cooldown
}

// CooldownTracker records when each actor's cooldowns expire.
type CooldownTracker struct {
	mu      sync.Mutex
	now     func() time.Time
	expires map[cooldownKey]time.Time
}

// NewCooldownTracker creates a tracker reading time from now; nil means time.Now.
func NewCooldownTracker(now func() time.Time) *CooldownTracker {
	if now == nil {
		now = time.Now
	}
	return &CooldownTracker{now: now, expires: make(map[cooldownKey]time.Time)}
}

// Start begins (or extends) a cooldown of kind for actor.
func (c *CooldownTracker) Start(actor string, kind Cooldown, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cooldownKey{actor, kind}
	until := c.now().Add(d)
	if until.After(c.expires[key]) {
		c.expires[key] = until
	}
}

// Remaining returns how long kind is still cooling down for actor.
func (c *CooldownTracker) Remaining(actor string, kind Cooldown) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cooldownKey{actor, kind}
	until, ok := c.expires[key]
	if !ok {
		return 0
	}
	left := until.Sub(c.now())
	if left <= 0 {
		delete(c.expires, key)
		return 0
	}
	return left
}

// Clear drops every cooldown held by actor, e.g. on logout.
func (c *CooldownTracker) Clear(actor string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.expires {
		if k.actor == actor {
			delete(c.expires, k)
		}
	}
}
