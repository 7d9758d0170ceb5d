package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cory-johannsen/advancement/internal/game/catalog"
	"github.com/cory-johannsen/advancement/internal/game/progression"
	"github.com/cory-johannsen/advancement/internal/game/session"
)

// Handlers renders progression commands as player-facing text.
//
// Handlers is not safe for concurrent use; callers serialize it together
// with the engine.
type Handlers struct {
	engine   *progression.Engine
	sessions *session.Manager
	registry *Registry
}

// NewHandlers creates Handlers.
//
// Precondition: engine, sessions and registry must be non-nil.
func NewHandlers(engine *progression.Engine, sessions *session.Manager, registry *Registry) *Handlers {
	return &Handlers{engine: engine, sessions: sessions, registry: registry}
}

// Run executes cmd on behalf of sess.
//
// Postcondition: handled is false for commands the caller implements itself
// (use, quit); otherwise the returned text is ready to show the player.
func (h *Handlers) Run(cmd *Command, sess *session.PlayerSession, args []string) (text string, handled bool) {
	if IsAdminCommand(cmd) && sess.Role != RoleAdmin {
		return "You do not have permission to do that.", true
	}
	switch cmd.Handler {
	case HandlerSkills:
		return h.skills(sess, args), true
	case HandlerNoSkill:
		return h.noSkill(sess, args), true
	case HandlerSkillSet:
		return h.skillSet(sess, args), true
	case HandlerSpecialize:
		return h.specialize(sess, args), true
	case HandlerWho:
		return h.who(), true
	case HandlerHelp:
		return h.help(sess), true
	case HandlerSetSkill:
		return h.setSkill(args), true
	case HandlerApprove:
		return h.approve(args), true
	case HandlerResetDaily:
		return h.resetDaily(), true
	default:
		return "", false
	}
}

func (h *Handlers) skills(sess *session.PlayerSession, args []string) string {
	req := ParseSkills(args)
	switch req.Verb {
	case SkillsBuy:
		ab, ok := h.findAbility(req.Target)
		if !ok {
			return "There is no such ability."
		}
		if err := h.engine.Purchase(sess.Player, ab.ID); err != nil {
			return describe(err)
		}
		return fmt.Sprintf("You learn %s.", ab.Name)
	case SkillsSell:
		// Mortals start over with a reset token instead.
		if !sess.Player.Immortal && sess.Role != RoleAdmin {
			return "Only immortals may sell abilities. Use skills reset <skill> to start over."
		}
		ab, ok := h.findAbility(req.Target)
		if !ok {
			return "There is no such ability."
		}
		if err := h.engine.Sell(sess.Player, ab.ID); err != nil {
			return describe(err)
		}
		return fmt.Sprintf("You forget %s.", ab.Name)
	case SkillsReset:
		s, ok := h.engine.Catalog().SkillByName(req.Target)
		if !ok {
			return "There is no such skill."
		}
		if err := h.engine.Reset(sess.Player, s.ID); err != nil {
			return describe(err)
		}
		return fmt.Sprintf("Your %s abilities have been reset.", s.Name)
	case SkillsDrop:
		return h.drop(sess, req)
	}
	if req.Target == "" {
		return h.overview(sess)
	}
	s, ok := h.engine.Catalog().SkillByName(req.Target)
	if !ok {
		return "There is no such skill."
	}
	return h.tree(sess, s)
}

func (h *Handlers) findAbility(name string) (*catalog.Ability, bool) {
	cat := h.engine.Catalog()
	if ab, ok := cat.AbilityByName(name); ok {
		return ab, true
	}
	return cat.AbilityByID(strings.ToLower(strings.TrimSpace(name)))
}

// drop lists the levels a skill may drop to, or drops it when a level is given.
func (h *Handlers) drop(sess *session.PlayerSession, req SkillsArgs) string {
	if req.Target == "" && !req.HasLevel {
		return "Usage: skills drop <skill> [level]"
	}
	s, ok := h.engine.Catalog().SkillByName(req.Target)
	if !ok {
		return "There is no such skill."
	}
	if !req.HasLevel {
		levels := h.engine.DropLevels(sess.Player, s.ID)
		if len(levels) == 0 {
			return fmt.Sprintf("You cannot drop %s any lower.", s.Name)
		}
		return fmt.Sprintf("You may drop %s to: %s.", s.Name, joinInts(levels))
	}
	if err := h.engine.Drop(sess.Player, s.ID, req.Level); err != nil {
		return describe(err)
	}
	return fmt.Sprintf("%s drops to %d.", s.Name, req.Level)
}

func (h *Handlers) overview(sess *session.PlayerSession) string {
	p := sess.Player
	var b strings.Builder
	fmt.Fprintf(&b, "Skill set %d\n", p.CurrentSet+1)
	for _, s := range h.engine.Catalog().Skills() {
		level := p.SkillLevel(s.ID)
		fmt.Fprintf(&b, "  %-20s %3d", s.Name, level)
		if n := h.engine.PointsAvailable(p, s.ID); n > 0 {
			fmt.Fprintf(&b, "  (%d point%s)", n, plural(n))
		}
		if sp, ok := p.LookupSkill(s.ID); ok && sp.NoSkill {
			b.WriteString("  [noskill]")
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Daily bonus gains remaining: %d", p.DailyBonusExp)
	return b.String()
}

// tree lists a skill's abilities, each prerequisite above its dependents.
func (h *Handlers) tree(sess *session.PlayerSession, s *catalog.Skill) string {
	p := sess.Player
	cat := h.engine.Catalog()
	sp, _ := p.LookupSkill(s.ID)
	resets := 0
	if sp != nil {
		resets = sp.Resets
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: level %d, %d point%s spent, %d available, %d reset%s\n",
		s.Name, p.SkillLevel(s.ID),
		h.engine.PointsSpent(p, s.ID), plural(h.engine.PointsSpent(p, s.ID)),
		h.engine.PointsAvailable(p, s.ID),
		resets, plural(resets))

	required := make(map[string]int, len(s.Assignments))
	for _, a := range s.Assignments {
		required[a.Ability] = a.RequiredLevel
	}
	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		ab, ok := cat.AbilityByID(id)
		if !ok {
			return
		}
		mark := "[ ]"
		switch {
		case p.OwnsActive(id):
			mark = "[*]"
		case p.SkillLevel(s.ID) < required[id]:
			mark = "[-]"
		}
		fmt.Fprintf(&b, "%s%s %s (%d)\n", strings.Repeat("  ", depth+1), mark, ab.Name, required[id])
		for _, child := range cat.Children(id) {
			walk(child, depth+1)
		}
	}
	for _, a := range cat.Roots(s.ID) {
		walk(a.Ability, 0)
	}
	if h.engine.IsDeadEnd(p, s.ID) {
		b.WriteString("You have reached a dead end in this skill.\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (h *Handlers) noSkill(sess *session.PlayerSession, args []string) string {
	s, ok := h.engine.Catalog().SkillByName(strings.Join(args, " "))
	if !ok {
		return "Usage: noskill <skill>"
	}
	off, err := h.engine.ToggleNoSkill(sess.Player, s.ID)
	if err != nil {
		return describe(err)
	}
	if off {
		return fmt.Sprintf("You will no longer improve %s.", s.Name)
	}
	return fmt.Sprintf("You will improve %s again.", s.Name)
}

func (h *Handlers) skillSet(sess *session.PlayerSession, args []string) string {
	if len(args) == 0 {
		return fmt.Sprintf("You are using skill set %d.", sess.Player.CurrentSet+1)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return "Usage: skillset [1|2]"
	}
	if err := h.engine.Swap(sess.Player, n-1); err != nil {
		return describe(err)
	}
	return fmt.Sprintf("You switch to skill set %d.", n)
}

func (h *Handlers) specialize(sess *session.PlayerSession, args []string) string {
	s, ok := h.engine.Catalog().SkillByName(strings.Join(args, " "))
	if !ok {
		return "Usage: specialize <skill>"
	}
	if err := h.engine.Specialize(sess.Player, s.ID); err != nil {
		return describe(err)
	}
	return fmt.Sprintf("You specialize in %s.", s.Name)
}

func (h *Handlers) who() string {
	all := h.sessions.All()
	names := make([]string, 0, len(all))
	for _, s := range all {
		names = append(names, s.Player.Name)
	}
	return fmt.Sprintf("Players online (%d): %s", len(names), strings.Join(names, ", "))
}

func (h *Handlers) help(sess *session.PlayerSession) string {
	byCat := h.registry.CommandsByCategory()
	var b strings.Builder
	for _, cat := range []string{CategoryProgression, CategoryAbility, CategorySystem, CategoryAdmin} {
		if cat == CategoryAdmin && sess.Role != RoleAdmin {
			continue
		}
		cmds := byCat[cat]
		if len(cmds) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s:\n", cat)
		for _, c := range cmds {
			fmt.Fprintf(&b, "  %-12s %s\n", c.Name, c.Help)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (h *Handlers) setSkill(args []string) string {
	if len(args) < 3 {
		return "Usage: setskill <player> <skill> <level>"
	}
	target, ok := h.sessions.GetPlayerByCharName(args[0])
	if !ok {
		return fmt.Sprintf("No player named %s is online.", args[0])
	}
	name, level, ok := trailingLevel(args[1:])
	if !ok {
		return "Usage: setskill <player> <skill> <level>"
	}
	s, ok := h.engine.Catalog().SkillByName(name)
	if !ok {
		return "There is no such skill."
	}
	if err := h.engine.SetSkill(target.Player, s.ID, level); err != nil {
		return describe(err)
	}
	return fmt.Sprintf("%s now has %s at %d.", target.Player.Name, s.Name, target.Player.SkillLevel(s.ID))
}

func (h *Handlers) approve(args []string) string {
	if len(args) != 1 {
		return "Usage: approve <player>"
	}
	target, ok := h.sessions.GetPlayerByCharName(args[0])
	if !ok {
		return fmt.Sprintf("No player named %s is online.", args[0])
	}
	if err := h.engine.Approve(target.Player); err != nil {
		return describe(err)
	}
	return fmt.Sprintf("%s is approved.", target.Player.Name)
}

func (h *Handlers) resetDaily() string {
	n := 0
	for _, p := range h.sessions.Players() {
		if h.engine.ResetDailyAllowance(p) {
			n++
		}
	}
	return fmt.Sprintf("Daily allowance restored for %d player%s.", n, plural(n))
}

// describe turns an engine refusal into a sentence for the player.
func describe(err error) string {
	switch {
	case errors.Is(err, progression.ErrNPC):
		return "You have no skills."
	case errors.Is(err, progression.ErrUnknownSkill):
		return "There is no such skill."
	case errors.Is(err, progression.ErrUnknownAbility):
		return "There is no such ability."
	case errors.Is(err, progression.ErrNotInSkill):
		return "That ability cannot be learned."
	case errors.Is(err, progression.ErrAlreadyOwned):
		return "You already know that."
	case errors.Is(err, progression.ErrNotOwned):
		return "You do not know that."
	case errors.Is(err, progression.ErrNoPoints):
		return "You have no ability points to spend in that skill."
	case errors.Is(err, progression.ErrFreeAbility):
		return "Free abilities cannot be forgotten."
	case errors.Is(err, progression.ErrNoResets):
		return "You have no free reset for that skill."
	case errors.Is(err, progression.ErrNotAtCap):
		return "That skill is not at a cap."
	case errors.Is(err, progression.ErrInvalidSlot):
		return "Usage: skillset [1|2]"
	case errors.Is(err, progression.ErrAlreadyActive):
		return "That skill set is already active."
	}
	msg := err.Error()
	return strings.ToUpper(msg[:1]) + msg[1:] + "."
}

func joinInts(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
