package admin

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cory-johannsen/advancement/internal/game/faction"
	"github.com/cory-johannsen/advancement/internal/game/progress"
	"github.com/cory-johannsen/advancement/internal/game/progression"
	"github.com/cory-johannsen/advancement/internal/storage/postgres"
)

type appFunc func() (*App, error)

func newApproveCommand(get appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <player>",
		Short: "Allow a player to gain skills when approval is required",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := get()
			if err != nil {
				return err
			}
			if err := app.Players.SetApproved(cmd.Context(), args[0], true); err != nil {
				return fmt.Errorf("approving %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "approved %s\n", args[0])
			return nil
		},
	}
}

func newSetSkillCommand(get appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "setskill <player> <skill> <level>",
		Short: "Set a skill level, stripping abilities the new level no longer supports",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := get()
			if err != nil {
				return err
			}
			level, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("level %q is not a number", args[2])
			}
			s, ok := app.Engine.Catalog().SkillByName(args[1])
			if !ok {
				return fmt.Errorf("%w: %s", progression.ErrUnknownSkill, args[1])
			}
			p, err := app.Players.LoadByName(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("loading %s: %w", args[0], err)
			}
			old := p.SkillLevel(s.ID)
			if err := app.Engine.SetSkill(p, s.ID, level); err != nil {
				return err
			}
			if err := app.Players.Save(cmd.Context(), p); err != nil {
				return fmt.Errorf("saving %s: %w", p.Name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s %d -> %d\n", p.Name, s.Name, old, p.SkillLevel(s.ID))
			return nil
		},
	}
}

func newShowCommand(get appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "show <player>",
		Short: "Print a player's skills and abilities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := get()
			if err != nil {
				return err
			}
			p, err := app.Players.LoadByName(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("loading %s: %w", args[0], err)
			}
			factionName := "none"
			if p.Affiliated() {
				factionName = p.FactionID.String()
				if all, err := app.Factions.All(cmd.Context()); err == nil {
					if f := byID(all, p.FactionID); f != nil {
						factionName = f.Name
					}
				}
			}
			return printPlayer(cmd, app.Engine, p, factionName)
		},
	}
}

func printPlayer(cmd *cobra.Command, engine *progression.Engine, p *progress.Player, factionName string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (#%d, account #%d)\n", p.Name, p.ID, p.AccountID)
	fmt.Fprintf(out, "faction: %s  skill set: %d  approved: %v  daily bonus: %d\n",
		factionName, p.CurrentSet+1, p.Approved, p.DailyBonusExp)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SKILL\tLEVEL\tSPENT\tAVAILABLE\tRESETS")
	for _, id := range p.SkillIDs() {
		sp, _ := p.LookupSkill(id)
		name := id
		if s, ok := engine.Catalog().SkillByID(id); ok {
			name = s.Name
		}
		if sp.NoSkill {
			name += " [noskill]"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", name, sp.Level,
			engine.PointsSpent(p, id), engine.PointsAvailable(p, id), sp.Resets)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "active abilities: %s\n", strings.Join(p.ActiveAbilities(), ", "))
	return nil
}

func newAccountCommand(get appFunc) *cobra.Command {
	account := &cobra.Command{
		Use:   "account",
		Short: "Manage login accounts",
	}
	account.AddCommand(&cobra.Command{
		Use:   "create <username> <password>",
		Short: "Create an account with the player role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := get()
			if err != nil {
				return err
			}
			acct, err := app.Accounts.Create(cmd.Context(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("creating account %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created account %s (#%d)\n", acct.Username, acct.ID)
			return nil
		},
	})
	account.AddCommand(&cobra.Command{
		Use:   "setrole <username> <role>",
		Short: "Set an account's role: player, editor or admin",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := get()
			if err != nil {
				return err
			}
			if !postgres.ValidRole(args[1]) {
				return fmt.Errorf("%w %q: must be one of player, editor, admin", postgres.ErrInvalidRole, args[1])
			}
			if err := app.Accounts.SetRoleByUsername(cmd.Context(), args[0], args[1]); err != nil {
				return fmt.Errorf("setting role for %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "set role for %s: %s\n", args[0], args[1])
			return nil
		},
	})
	return account
}

func newPlayerCommand(get appFunc) *cobra.Command {
	player := &cobra.Command{
		Use:   "player",
		Short: "Manage player records",
	}
	player.AddCommand(&cobra.Command{
		Use:   "create <username> <name>",
		Short: "Create a player record owned by an account, with every free ability",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := get()
			if err != nil {
				return err
			}
			acct, err := app.Accounts.GetByUsername(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("looking up account %s: %w", args[0], err)
			}
			p, err := app.Players.Create(cmd.Context(), acct.ID, args[1])
			if err != nil {
				return fmt.Errorf("creating player %s: %w", args[1], err)
			}
			if app.Engine.GrantFreeAbilities(p) > 0 {
				if err := app.Players.Save(cmd.Context(), p); err != nil {
					return fmt.Errorf("saving %s: %w", p.Name, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created player %s (#%d) for %s\n", p.Name, p.ID, acct.Username)
			return nil
		},
	})
	player.AddCommand(&cobra.Command{
		Use:   "faction <player> <faction|none>",
		Short: "Move a player into a faction, or out of every faction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := get()
			if err != nil {
				return err
			}
			p, err := app.Players.LoadByName(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("loading %s: %w", args[0], err)
			}
			target := "none"
			p.FactionID = uuid.Nil
			if !strings.EqualFold(args[1], "none") {
				all, err := app.Factions.All(cmd.Context())
				if err != nil {
					return err
				}
				f := byName(all, args[1])
				if f == nil {
					return fmt.Errorf("%w: %s", faction.ErrNotFound, args[1])
				}
				p.FactionID, target = f.ID, f.Name
			}
			if err := app.Players.Save(cmd.Context(), p); err != nil {
				return fmt.Errorf("saving %s: %w", p.Name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s faction: %s\n", p.Name, target)
			return nil
		},
	})
	return player
}

func newFactionCommand(get appFunc) *cobra.Command {
	fc := &cobra.Command{
		Use:   "faction",
		Short: "Manage factions",
	}
	fc.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a faction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := get()
			if err != nil {
				return err
			}
			f, err := app.Factions.Create(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("creating faction %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created faction %s (%s)\n", f.Name, f.ID)
			return nil
		},
	})
	fc.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List factions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := get()
			if err != nil {
				return err
			}
			all, err := app.Factions.All(cmd.Context())
			if err != nil {
				return err
			}
			for _, f := range all {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", f.ID, f.Name)
			}
			return nil
		},
	})
	return fc
}

func byID(all []*faction.Faction, id uuid.UUID) *faction.Faction {
	for _, f := range all {
		if f.ID == id {
			return f
		}
	}
	return nil
}

func byName(all []*faction.Faction, name string) *faction.Faction {
	for _, f := range all {
		if strings.EqualFold(f.Name, name) {
			return f
		}
	}
	return nil
}
