// Package admin implements the skilladmin command tree: offline edits to
// accounts, factions and player progress.
package admin

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/cory-johannsen/advancement/internal/game/faction"
	"github.com/cory-johannsen/advancement/internal/game/progress"
	"github.com/cory-johannsen/advancement/internal/game/progression"
	"github.com/cory-johannsen/advancement/internal/storage/postgres"
)

// AccountStore is the account persistence skilladmin needs.
type AccountStore interface {
	Create(ctx context.Context, username, password string) (postgres.Account, error)
	GetByUsername(ctx context.Context, username string) (postgres.Account, error)
	SetRoleByUsername(ctx context.Context, username, role string) error
}

// PlayerStore is the progress persistence skilladmin needs.
type PlayerStore interface {
	Create(ctx context.Context, accountID int64, name string) (*progress.Player, error)
	LoadByName(ctx context.Context, name string) (*progress.Player, error)
	Save(ctx context.Context, p *progress.Player) error
	SetApproved(ctx context.Context, name string, approved bool) error
}

// FactionStore is the faction persistence skilladmin needs.
type FactionStore interface {
	Create(ctx context.Context, name string) (*faction.Faction, error)
	All(ctx context.Context) ([]*faction.Faction, error)
}

// App is what every subcommand runs against. Engine applies level changes
// with the same rules the server uses.
type App struct {
	Accounts AccountStore
	Players  PlayerStore
	Factions FactionStore
	Engine   *progression.Engine
}

// Opener builds an App from the --config path. The returned func releases it.
type Opener func(ctx context.Context, configPath string) (*App, func(), error)

var errNoApp = errors.New("admin: command ran without an app")

// NewRootCommand builds the skilladmin command tree. open runs once, before
// the first subcommand that needs storage.
func NewRootCommand(open Opener) *cobra.Command {
	var (
		configPath string
		app        *App
		release    func()
	)
	root := &cobra.Command{
		Use:   "skilladmin",
		Short: "Administer accounts, factions and player skills",
		Long: `skilladmin edits progression records directly in PostgreSQL.

Run it while the player is offline: the server keeps its own copy of an
online player's record and overwrites these edits on the next save.

Examples:
  skilladmin account create ana hunter22
  skilladmin player create ana Zara
  skilladmin setskill Zara survival 30
  skilladmin show Zara`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, closeFn, err := open(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			app, release = a, closeFn
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if release != nil {
				release()
			}
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/dev.yaml", "path to configuration file")

	get := func() (*App, error) {
		if app == nil {
			return nil, errNoApp
		}
		return app, nil
	}
	root.AddCommand(
		newApproveCommand(get),
		newSetSkillCommand(get),
		newShowCommand(get),
		newAccountCommand(get),
		newPlayerCommand(get),
		newFactionCommand(get),
	)
	return root
}
