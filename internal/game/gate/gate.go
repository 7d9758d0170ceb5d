// Package gate decides whether an actor may invoke an ability right now and
// charges the invocation's cost. It never changes ability ownership.
package gate

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/advancement/internal/config"
)

// Pool names a resource an ability may cost.
type Pool int

const (
	NoPool Pool = iota
	Health
	Move
	Mana
	Blood
)

func (p Pool) String() string {
	switch p {
	case Health:
		return "health"
	case Move:
		return "move"
	case Mana:
		return "mana"
	case Blood:
		return "blood"
	default:
		return "none"
	}
}

// ParsePool maps a pool name to its Pool. The empty name is NoPool.
func ParsePool(name string) (Pool, bool) {
	switch name {
	case "":
		return NoPool, true
	case "health":
		return Health, true
	case "move":
		return Move, true
	case "mana":
		return Mana, true
	case "blood":
		return Blood, true
	default:
		return NoPool, false
	}
}

// vital pools may never be spent down to zero by an ability.
func (p Pool) vital() bool {
	return p == Health || p == Blood
}

// Cooldown names a cooldown kind. The empty Cooldown means none.
type Cooldown string

// Actor is anything that can invoke an ability: a player or an NPC.
type Actor interface {
	ActorID() string
	IsNPC() bool
	// Charmed reports whether the actor is under another's control.
	Charmed() bool
	// CanSpendBlood is false when the actor's blood cannot fuel abilities.
	CanSpendBlood() bool
	OwnsAbility(abilityID string) bool
	PoolValue(p Pool) int
	SetPoolValue(p Pool, v int)
	// Lag delays the actor's next command.
	Lag(d time.Duration)
}

var (
	ErrBloodInert   = errors.New("your blood is inert")
	ErrCharmed      = errors.New("you are not in control of yourself")
	ErrNotPurchased = errors.New("ability not purchased")
	ErrInsufficient = errors.New("not enough points")
	ErrCoolingDown  = errors.New("still on cooldown")
)

// Gate checks and charges ability use.
type Gate struct {
	wait      time.Duration
	cooldowns *CooldownTracker
	logger    *zap.Logger
}

// New creates a Gate.
//
// Precondition: cooldowns and logger must be non-nil.
func New(cfg config.GateConfig, cooldowns *CooldownTracker, logger *zap.Logger) *Gate {
	return &Gate{wait: cfg.UniversalWait, cooldowns: cooldowns, logger: logger}
}

// CanUse returns nil when a may invoke abilityID now.
//
// Blood is checked first and binds NPCs too. NPCs otherwise pass unless
// charmed. Players must own the ability, afford the cost (leaving at least
// one point in a vital pool) and be off cooldown.
func (g *Gate) CanUse(a Actor, abilityID string, pool Pool, cost int, cd Cooldown) error {
	if pool == Blood && cost > 0 && !a.CanSpendBlood() {
		return ErrBloodInert
	}
	if a.IsNPC() {
		if a.Charmed() {
			return ErrCharmed
		}
		return nil
	}
	if !a.OwnsAbility(abilityID) {
		return fmt.Errorf("%w: %s", ErrNotPurchased, abilityID)
	}
	if pool != NoPool && cost > 0 {
		need := cost
		if pool.vital() {
			need++
		}
		if a.PoolValue(pool) < need {
			return fmt.Errorf("%w: need %d %s", ErrInsufficient, cost, pool)
		}
	}
	if cd != "" {
		if left := g.cooldowns.Remaining(a.ActorID(), cd); left > 0 {
			secs := int(left.Round(time.Second) / time.Second)
			return fmt.Errorf("%w: %s for %d second%s", ErrCoolingDown, abilityID, secs, plural(secs))
		}
	}
	return nil
}

// Charge deducts cost from pool (never below zero), starts the cooldown for
// players, and lags every actor by the universal wait.
func (g *Gate) Charge(a Actor, pool Pool, cost int, cd Cooldown, duration time.Duration) {
	if pool != NoPool && cost > 0 {
		a.SetPoolValue(pool, max(0, a.PoolValue(pool)-cost))
	}
	if cd != "" && duration > 0 && !a.IsNPC() {
		g.cooldowns.Start(a.ActorID(), cd, duration)
	}
	a.Lag(g.wait)
	g.logger.Debug("ability charged",
		zap.String("actor", a.ActorID()),
		zap.Stringer("pool", pool),
		zap.Int("cost", cost),
		zap.String("cooldown", string(cd)),
	)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
