// Package main is the skilladmin CLI for editing accounts, factions and
// player progress while players are offline.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/cory-johannsen/advancement/internal/admin"
	"github.com/cory-johannsen/advancement/internal/config"
	"github.com/cory-johannsen/advancement/internal/game/catalog"
	"github.com/cory-johannsen/advancement/internal/game/dice"
	"github.com/cory-johannsen/advancement/internal/game/progression"
	"github.com/cory-johannsen/advancement/internal/observability"
	"github.com/cory-johannsen/advancement/internal/storage/postgres"
)

func open(ctx context.Context, configPath string) (*admin.App, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := observability.NewLogger("skilladmin", cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}

	cat, err := catalog.LoadDirectory(cfg.Content.CatalogDir)
	if err != nil {
		return nil, nil, fmt.Errorf("loading catalog: %w", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Offline edits: no techs are registered and nobody is online to notify.
	engine := progression.NewEngine(cfg.Progression, catalog.NewHolder(cat),
		dice.NewLoggedRoller(dice.NewCryptoSource(), logger), logger, progression.Collaborators{})

	app := &admin.App{
		Accounts: postgres.NewAccountRepository(pool.DB()),
		Players:  postgres.NewProgressRepository(pool.DB()),
		Factions: postgres.NewFactionRepository(pool.DB()),
		Engine:   engine,
	}
	release := func() {
		pool.Close()
		_ = logger.Sync()
	}
	logger.Debug("skilladmin ready", zap.String("config", configPath))
	return app, release, nil
}

func main() {
	if err := admin.NewRootCommand(open).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
