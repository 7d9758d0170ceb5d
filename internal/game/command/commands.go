// Package command provides the command registry, parser, and built-in command definitions.
package command

// Categories for organizing commands.
const (
	CategoryProgression = "progression"
	CategoryAbility     = "ability"
	CategorySystem      = "system"
	CategoryAdmin       = "admin"
)

// Handler identifiers mapping commands to their implementation.
const (
	HandlerSkills     = "skills"
	HandlerNoSkill    = "noskill"
	HandlerSkillSet   = "skillset"
	HandlerSpecialize = "specialize"
	HandlerUse        = "use"
	HandlerWho        = "who"
	HandlerQuit       = "quit"
	HandlerHelp       = "help"
	HandlerSetSkill   = "setskill"
	HandlerApprove    = "approve"
	HandlerResetDaily = "resetdaily"
)

// Role names recognised by admin commands.
const (
	RolePlayer = "player"
	RoleEditor = "editor"
	RoleAdmin  = "admin"
)

// Command defines a player-invocable command.
type Command struct {
	// Name is the canonical command name.
	Name string
	// Aliases are alternate names for this command.
	Aliases []string
	// Help is the short help text displayed to players.
	Help string
	// Category groups the command (progression, ability, system, admin).
	Category string
	// Handler maps to the local handler.
	Handler string
}

// BuiltinCommands returns all built-in commands for the game.
func BuiltinCommands() []Command {
	return []Command{
		// Progression commands
		{Name: "skills", Aliases: []string{"sk", "skill"}, Help: "Show skills or manage abilities (skills [skill] | buy|sell <ability> | reset <skill> | drop <skill> <level>)", Category: CategoryProgression, Handler: HandlerSkills},
		{Name: "noskill", Aliases: []string{"ns"}, Help: "Stop or resume gaining a skill (noskill <skill>)", Category: CategoryProgression, Handler: HandlerNoSkill},
		{Name: "skillset", Aliases: []string{"ss"}, Help: "Display or swap ability sets (skillset [1|2])", Category: CategoryProgression, Handler: HandlerSkillSet},
		{Name: "specialize", Aliases: []string{"spec"}, Help: "Push a capped skill past its cap (specialize <skill>)", Category: CategoryProgression, Handler: HandlerSpecialize},

		// Ability commands
		{Name: "use", Aliases: []string{"u"}, Help: "Use an ability (use <ability>)", Category: CategoryAbility, Handler: HandlerUse},

		// System commands
		{Name: "who", Aliases: nil, Help: "List players online", Category: CategorySystem, Handler: HandlerWho},
		{Name: "quit", Aliases: []string{"exit"}, Help: "Disconnect from the game", Category: CategorySystem, Handler: HandlerQuit},
		{Name: "help", Aliases: []string{"?"}, Help: "Show available commands", Category: CategorySystem, Handler: HandlerHelp},

		// Admin commands
		{Name: "setskill", Aliases: nil, Help: "Set a player's skill level (setskill <player> <skill> <level>, admin only)", Category: CategoryAdmin, Handler: HandlerSetSkill},
		{Name: "approve", Aliases: nil, Help: "Approve a player for advancement (approve <player>, admin only)", Category: CategoryAdmin, Handler: HandlerApprove},
		{Name: "resetdaily", Aliases: nil, Help: "Restore every online player's daily skill allowance (admin only)", Category: CategoryAdmin, Handler: HandlerResetDaily},
	}
}

// IsAdminCommand reports whether the command requires the admin role.
func IsAdminCommand(cmd *Command) bool {
	return cmd != nil && cmd.Category == CategoryAdmin
}
