// Package gameserver hosts the live progression world: online sessions,
// command dispatch, ability use, and the periodic jobs that keep player
// records current.
package gameserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cory-johannsen/advancement/internal/config"
	"github.com/cory-johannsen/advancement/internal/game/catalog"
	"github.com/cory-johannsen/advancement/internal/game/command"
	"github.com/cory-johannsen/advancement/internal/game/condition"
	"github.com/cory-johannsen/advancement/internal/game/dice"
	"github.com/cory-johannsen/advancement/internal/game/faction"
	"github.com/cory-johannsen/advancement/internal/game/gate"
	"github.com/cory-johannsen/advancement/internal/game/progress"
	"github.com/cory-johannsen/advancement/internal/game/progression"
	"github.com/cory-johannsen/advancement/internal/game/session"
	"github.com/cory-johannsen/advancement/internal/observability"
	"github.com/cory-johannsen/advancement/internal/scripting"
)

// flushConcurrency bounds concurrent saves during FlushAll.
const flushConcurrency = 4

var (
	// ErrNotOnline is returned for commands from a player with no session.
	ErrNotOnline = errors.New("player is not online")
	// ErrAlreadyOnline is returned when logging in a player twice.
	ErrAlreadyOnline = errors.New("player is already online")
	// ErrWrongAccount is returned when an account logs in a player it does not own.
	ErrWrongAccount = errors.New("player belongs to another account")
)

// ProgressStore loads and saves player records.
type ProgressStore interface {
	Load(ctx context.Context, id int64) (*progress.Player, error)
	Save(ctx context.Context, p *progress.Player) error
}

// Deps groups what NewService needs.
type Deps struct {
	Config   config.Config
	Catalog  *catalog.Holder
	Factions *faction.Registry
	Store    ProgressStore
	// Effects defines the standing effects abilities may start. nil means none.
	Effects *condition.Registry
	// Scripts runs Lua hooks. nil disables them.
	Scripts *scripting.Manager
	Roller  *dice.Roller
	Logger  *zap.Logger
}

// Service serializes every progression mutation behind one lock.
type Service struct {
	mu sync.Mutex

	catalog   *catalog.Holder
	factions  *faction.Registry
	store     ProgressStore
	saves     *saveLine
	loaded    *progress.Store
	engine    *progression.Engine
	techs     *faction.Synchronizer
	sessions  *session.Manager
	registry  *command.Registry
	handlers  *command.Handlers
	gate      *gate.Gate
	cooldowns *gate.CooldownTracker
	effects   *condition.StandingEffects
	scripts   *scripting.Manager
	logger    *zap.Logger
}

// NewService wires the engine to its collaborators.
//
// Precondition: Catalog, Factions, Store, Roller and Logger must be non-nil.
// Postcondition: Publishing through ReloadCatalog re-syncs every online player.
func NewService(d Deps) *Service {
	effects := d.Effects
	if effects == nil {
		effects = condition.NewRegistry()
	}
	s := &Service{
		catalog:   d.Catalog,
		factions:  d.Factions,
		store:     d.Store,
		saves:     newSaveLine(d.Store, d.Logger),
		loaded:    progress.NewStore(),
		sessions:  session.NewManager(),
		registry:  command.DefaultRegistry(),
		cooldowns: gate.NewCooldownTracker(nil),
		scripts:   d.Scripts,
		logger:    d.Logger,
	}
	s.effects = condition.NewStandingEffects(effects, s.sessions, d.Logger)
	s.gate = gate.New(d.Config.Gate, s.cooldowns, d.Logger)
	s.techs = faction.NewSynchronizer(d.Factions, d.Catalog, d.Logger)

	sales := progression.SaleHandlers{s.effects}
	if s.scripts != nil {
		s.scripts.GetPlayer = s.playerInfo
		s.scripts.Notify = s.sessions.Notify
		s.scripts.ApplyEffect = s.effects.Apply
		s.scripts.HasEffect = s.effects.Has
		sales = append(sales, scripting.NewSaleHook(s.scripts))
	}

	s.engine = progression.NewEngine(d.Config.Progression, d.Catalog, d.Roller, d.Logger, progression.Collaborators{
		Sales:    sales,
		Techs:    s.techs,
		Saver:    s.saves,
		Notifier: s.sessions,
	})
	s.handlers = command.NewHandlers(s.engine, s.sessions, s.registry)

	// Publish runs inside ReloadCatalog, which already holds s.mu.
	d.Catalog.Subscribe(func(*catalog.Catalog) {
		for _, p := range s.loaded.All() {
			s.techs.Register(p)
			s.syncAbilities(p)
		}
	})
	return s
}

// Engine returns the progression engine. Callers must not use it outside
// the service lock while players are online.
func (s *Service) Engine() *progression.Engine { return s.engine }

// Sessions returns the session manager.
func (s *Service) Sessions() *session.Manager { return s.sessions }

// Login loads playerID, marks it playing, and opens a session.
//
// Postcondition: The player's active abilities count toward its faction and
// it owns every level-zero ability.
func (s *Service) Login(ctx context.Context, accountID int64, username, role string, playerID int64) (*session.PlayerSession, error) {
	if _, ok := s.sessions.GetPlayer(playerID); ok {
		return nil, ErrAlreadyOnline
	}
	p, err := s.store.Load(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("loading player %d: %w", playerID, err)
	}
	if p.AccountID != accountID {
		return nil, ErrWrongAccount
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.sessions.AddPlayer(p, accountID, username, role)
	if err != nil {
		return nil, ErrAlreadyOnline
	}
	if err := s.loaded.Put(p); err != nil {
		_, _ = s.sessions.RemovePlayer(playerID)
		return nil, fmt.Errorf("loading player %d: %w", playerID, err)
	}
	p.Playing = true
	s.techs.Register(p)
	s.engine.RefreshSkillLimits(p)
	s.syncAbilities(p)

	s.logger.Info("player logged in",
		observability.Player(p.ID),
		zap.String("name", p.Name),
		zap.String("username", username),
		zap.Int("online", s.sessions.PlayerCount()),
	)
	return sess, nil
}

// Logout closes playerID's session and saves the record.
//
// Postcondition: The player no longer counts toward its faction and its
// cooldowns and standing effects are gone, even when the save fails.
func (s *Service) Logout(ctx context.Context, playerID int64) error {
	s.mu.Lock()
	sess, ok := s.sessions.GetPlayer(playerID)
	if !ok {
		s.mu.Unlock()
		return ErrNotOnline
	}
	p := sess.Player
	s.techs.Deregister(p)
	p.Playing = false
	s.effects.Forget(p.ID)
	s.cooldowns.Clear(sess.ActorID())
	_, _ = s.sessions.RemovePlayer(p.ID)
	s.loaded.Remove(p.ID)
	snap := s.saves.stamp(p)
	s.mu.Unlock()

	s.logger.Info("player logged out", observability.Player(p.ID), zap.String("name", p.Name))
	if err := s.saves.write(ctx, snap); err != nil {
		return fmt.Errorf("saving player %d: %w", p.ID, err)
	}
	return nil
}

// HandleCommand parses and runs one command line for playerID.
//
// Postcondition: quit closes the session; every other command leaves it open.
func (s *Service) HandleCommand(ctx context.Context, playerID int64, line string) (string, error) {
	sess, ok := s.sessions.GetPlayer(playerID)
	if !ok {
		return "", ErrNotOnline
	}
	parsed := command.Parse(line)
	if parsed.Command == "" {
		return "", nil
	}
	cmd, ok := s.registry.Resolve(parsed.Command)
	if !ok {
		return fmt.Sprintf("Unknown command %q. Type help for a list.", parsed.Command), nil
	}

	switch cmd.Handler {
	case command.HandlerQuit:
		if err := s.Logout(ctx, playerID); err != nil {
			return "Goodbye.", err
		}
		return "Goodbye.", nil
	case command.HandlerUse:
		return s.UseAbility(sess, strings.Join(parsed.Args, " ")), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	text, handled := s.handlers.Run(cmd, sess, parsed.Args)
	if !handled {
		s.logger.Warn("command has no handler", zap.String("command", cmd.Name))
		return fmt.Sprintf("Unknown command %q. Type help for a list.", parsed.Command), nil
	}
	return text, nil
}

// UseAbility invokes the named ability for sess: the gate checks and
// charges it, its standing effect starts, and the governing skill gains
// exp. A Lua on_ability_used result replaces the default message.
func (s *Service) UseAbility(sess *session.PlayerSession, name string) string {
	if strings.TrimSpace(name) == "" {
		return "Usage: use <ability>"
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.engine.Catalog().AbilityByName(name)
	if !ok {
		return "There is no such ability."
	}
	if time.Now().Before(sess.LagUntil) {
		return "You are not ready to act again yet."
	}
	if s.effects.Restricts(sess.Player.ID, a.ID) {
		return fmt.Sprintf("You cannot use %s in your current form.", a.Name)
	}
	pool, ok := gate.ParsePool(a.Use.Pool)
	if !ok {
		s.logger.Warn("ability draws on unknown pool", observability.Ability(a.ID), zap.String("pool", a.Use.Pool))
		return "Nothing happens."
	}
	cd := gate.Cooldown(a.Use.Cooldown)
	if cd == "" && a.Use.Seconds > 0 {
		cd = gate.Cooldown(a.ID)
	}

	if err := s.gate.CanUse(sess, a.ID, pool, a.Use.Cost, cd); err != nil {
		return s.describeRefusal(err, sess, a, pool, cd)
	}
	s.gate.Charge(sess, pool, a.Use.Cost, cd, time.Duration(a.Use.Seconds)*time.Second)

	if a.Use.Effect != "" {
		ticks := a.Use.Ticks
		if ticks == 0 {
			ticks = -1
		}
		if err := s.effects.Apply(sess.Player.ID, a.Use.Effect, 1, ticks); err != nil {
			s.logger.Warn("starting standing effect", observability.Ability(a.ID), zap.Error(err))
		}
	}
	if a.Use.Exp > 0 {
		s.engine.GainAbilityExp(sess.Player, a.ID, a.Use.Exp)
	}

	if s.scripts != nil {
		if msg, ok := s.scripts.OnAbilityUsed(sess.Player.ID, a.ID); ok {
			return msg
		}
	}
	return fmt.Sprintf("You use %s.", a.Name)
}

func (s *Service) describeRefusal(err error, sess *session.PlayerSession, a *catalog.Ability, pool gate.Pool, cd gate.Cooldown) string {
	switch {
	case errors.Is(err, gate.ErrNotPurchased):
		return fmt.Sprintf("You do not know %s.", a.Name)
	case errors.Is(err, gate.ErrInsufficient):
		return fmt.Sprintf("You need more than %d %s to use %s.", a.Use.Cost, pool, a.Name)
	case errors.Is(err, gate.ErrCoolingDown):
		left := s.cooldowns.Remaining(sess.ActorID(), cd).Round(time.Second)
		return fmt.Sprintf("You must wait %s before using %s again.", left, a.Name)
	case errors.Is(err, gate.ErrBloodInert):
		return "Your blood is inert."
	case errors.Is(err, gate.ErrCharmed):
		return "You are not in control of yourself."
	}
	return "You cannot do that right now."
}

// ResetDaily restores every online player's daily bonus-exp allowance and
// returns how many changed.
func (s *Service) ResetDaily() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.loaded.All() {
		if s.engine.ResetDailyAllowance(p) {
			n++
		}
	}
	s.logger.Info("daily allowance reset", zap.Int("players", n))
	return n
}

// TickEffects counts down timed standing effects and returns how many ended.
func (s *Service) TickEffects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.effects.Tick()
}

// FlushAll saves a snapshot of every loaded player concurrently, then waits
// for saves queued behind it.
//
// Postcondition: Returns the first save error; the other saves still run. A
// snapshot taken here never replaces one stamped later by gameplay or Logout.
func (s *Service) FlushAll(ctx context.Context) error {
	s.mu.Lock()
	players := s.loaded.All()
	snapshots := make([]snapshot, len(players))
	for i, p := range players {
		snapshots[i] = s.saves.stamp(p)
	}
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(flushConcurrency)
	for _, snap := range snapshots {
		g.Go(func() error {
			if err := s.saves.write(gctx, snap); err != nil {
				return fmt.Errorf("flushing player %d: %w", snap.player.ID, err)
			}
			return nil
		})
	}
	err := g.Wait()
	s.saves.Wait()
	s.logger.Debug("players flushed", zap.Int("count", len(snapshots)), zap.Error(err))
	return err
}

// ReloadCatalog reads dir and publishes it. Online players are removed from
// their factions' counters under the old catalog and added back under the
// new one.
//
// Postcondition: on error the old catalog stays in effect and counters are unchanged.
func (s *Service) ReloadCatalog(dir string) error {
	skills, abilities, err := catalog.ReadDirectory(dir)
	if err != nil {
		return fmt.Errorf("reading catalog: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	players := s.loaded.All()
	for _, p := range players {
		s.techs.Deregister(p)
	}
	c, err := s.catalog.Publish(skills, abilities)
	if err != nil {
		for _, p := range players {
			s.techs.Register(p)
		}
		return fmt.Errorf("publishing catalog: %w", err)
	}
	s.logger.Info("catalog reloaded",
		zap.Int("skills", len(c.Skills())),
		zap.Int("abilities", len(c.Abilities())),
	)
	return nil
}

// syncAbilities strips abilities above p's skill levels and grants every
// level-zero ability. Stored records and live ones may both predate the
// current catalog.
//
// Precondition: the caller holds s.mu and p is registered with its faction.
func (s *Service) syncAbilities(p *progress.Player) {
	for _, id := range p.SkillIDs() {
		err := s.engine.CheckAbilityLevels(p, id)
		switch {
		case errors.Is(err, progression.ErrUnknownSkill):
			// Skills removed from the catalog stay on the record.
			s.logger.Debug("skipping ability check for unknown skill",
				observability.Player(p.ID), observability.Skill(id))
		case err != nil:
			s.logger.Warn("checking ability levels",
				observability.Player(p.ID), observability.Skill(id), zap.Error(err))
		}
	}
	s.engine.GrantFreeAbilities(p)
}

// playerInfo serves scripts, which only run while s.mu is held.
func (s *Service) playerInfo(id int64) *scripting.PlayerInfo {
	p, ok := s.loaded.Get(id)
	if !ok {
		return nil
	}
	info := &scripting.PlayerInfo{
		ID:         p.ID,
		Name:       p.Name,
		CurrentSet: p.CurrentSet,
		Skills:     make(map[string]int),
	}
	if p.Affiliated() {
		if f, err := s.factions.Get(p.FactionID); err == nil {
			info.Faction = f.Name
		}
	}
	for _, sk := range p.SkillIDs() {
		info.Skills[sk] = p.SkillLevel(sk)
	}
	return info
}
