// Package progression implements skill experience, level changes, the
// ability point budget, purchases and sales, and the two-slot loadout swap.
//
// The Engine is not safe for concurrent use. Callers serialize every
// operation on a player, the way a single simulation turn would.
package progression

import (
	"errors"

	"go.uber.org/zap"

	"github.com/cory-johannsen/advancement/internal/config"
	"github.com/cory-johannsen/advancement/internal/game/catalog"
	"github.com/cory-johannsen/advancement/internal/game/dice"
	"github.com/cory-johannsen/advancement/internal/game/progress"
)

// GainsPerAbility is how many skill levels one ability may be credited with.
const GainsPerAbility = 10

// Expected refusals. Gameplay callers treat these as silent no-ops or show
// them to the player; none of them leave a record partially changed.
var (
	ErrNPC              = errors.New("non-player characters have no skills")
	ErrUnknownSkill     = errors.New("no such skill")
	ErrUnknownAbility   = errors.New("no such ability")
	ErrNotInSkill       = errors.New("that ability cannot be bought")
	ErrAlreadyOwned     = errors.New("ability already owned")
	ErrNotOwned         = errors.New("ability not owned")
	ErrNoPoints         = errors.New("no ability points available")
	ErrLevelTooLow      = errors.New("skill level too low")
	ErrMissingPrereq    = errors.New("prerequisite not owned")
	ErrNoResets         = errors.New("no free reset available")
	ErrInvalidDropLevel = errors.New("invalid drop level")
	ErrNotAtCap         = errors.New("skill is not at a specialization cap")
	ErrSpecialtyLimit   = errors.New("specialization limit reached")
	ErrInvalidSlot      = errors.New("invalid skill set")
	ErrAlreadyActive    = errors.New("skill set already active")
	ErrFreeAbility      = errors.New("free abilities cannot be sold")
	ErrHasDependents    = errors.New("another owned ability requires it")
)

// CatalogSource yields the catalog currently in effect.
type CatalogSource interface {
	Current() *catalog.Catalog
}

// SaleHandler undoes standing gameplay state tied to an ability when it
// leaves the active slot. Implementations must tolerate being called when
// no such state exists.
type SaleHandler interface {
	OnAbilityDeactivated(p *progress.Player, abilityID string)
}

// SaleFunc adapts a function to SaleHandler.
type SaleFunc func(p *progress.Player, abilityID string)

// OnAbilityDeactivated calls f.
func (f SaleFunc) OnAbilityDeactivated(p *progress.Player, abilityID string) { f(p, abilityID) }

// SaleHandlers fans a deactivation out to every handler in order.
type SaleHandlers []SaleHandler

// OnAbilityDeactivated calls each handler.
func (hs SaleHandlers) OnAbilityDeactivated(p *progress.Player, abilityID string) {
	for _, h := range hs {
		h.OnAbilityDeactivated(p, abilityID)
	}
}

// TechSync adjusts faction technology counters for a player's active slot.
type TechSync interface {
	Register(p *progress.Player)
	Deregister(p *progress.Player)
}

// Saver persists a player record. Failures are the saver's to log.
type Saver interface {
	Save(p *progress.Player)
}

// Notifier delivers a progression message to a player.
type Notifier interface {
	Notify(playerID int64, msg string)
}

// Collaborators groups the Engine's external contracts. Nil members are
// replaced by no-ops.
type Collaborators struct {
	Sales    SaleHandler
	Techs    TechSync
	Saver    Saver
	Notifier Notifier
}

type nopCollaborator struct{}

func (nopCollaborator) OnAbilityDeactivated(*progress.Player, string) {}
func (nopCollaborator) Register(*progress.Player)                     {}
func (nopCollaborator) Deregister(*progress.Player)                   {}
func (nopCollaborator) Save(*progress.Player)                         {}
func (nopCollaborator) Notify(int64, string)                          {}

// Engine applies progression rules to player records.
type Engine struct {
	cfg     config.ProgressionConfig
	catalog CatalogSource
	roller  *dice.Roller
	sales   SaleHandler
	techs   TechSync
	saver   Saver
	notify  Notifier
	logger  *zap.Logger
}

// NewEngine creates an Engine.
//
// Precondition: cfg must pass config validation; cat, roller and logger must be non-nil.
func NewEngine(cfg config.ProgressionConfig, cat CatalogSource, roller *dice.Roller, logger *zap.Logger, c Collaborators) *Engine {
	e := &Engine{
		cfg:     cfg,
		catalog: cat,
		roller:  roller,
		sales:   c.Sales,
		techs:   c.Techs,
		saver:   c.Saver,
		notify:  c.Notifier,
		logger:  logger,
	}
	if e.sales == nil {
		e.sales = nopCollaborator{}
	}
	if e.techs == nil {
		e.techs = nopCollaborator{}
	}
	if e.saver == nil {
		e.saver = nopCollaborator{}
	}
	if e.notify == nil {
		e.notify = nopCollaborator{}
	}
	return e
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() config.ProgressionConfig {
	return config.ProgressionConfig{
		Thresholds:            []int{1, 5, 10, 15, 20, 25, 30, 40, 50, 60, 70, 75, 80, 90, 100},
		DeadEndCheckpoint:     10,
		MinExpToRoll:          10,
		DailySkillPoints:      15,
		BonusTraitDailySkills: 5,
		SlowGainDivisor:       50,
		SpecialtyAllowed:      2,
		BonusSpecialtyAllowed: 1,
		ZeroesForBonusSkills:  2,
	}
}

// Catalog returns the catalog currently in effect.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog.Current()
}

func (e *Engine) skill(id string) (*catalog.Skill, error) {
	s, ok := e.catalog.Current().SkillByID(id)
	if !ok {
		return nil, ErrUnknownSkill
	}
	return s, nil
}

func playable(p *progress.Player) bool {
	return p != nil && !p.IsNPC
}

// bracket runs fn between a technology deregister and register.
func (e *Engine) bracket(p *progress.Player, fn func()) {
	e.techs.Deregister(p)
	fn()
	e.techs.Register(p)
}

func (e *Engine) save(p *progress.Player) {
	e.saver.Save(p)
}
