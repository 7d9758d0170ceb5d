// Package main runs the progression server: it loads content, connects to
// PostgreSQL, and runs the periodic jobs behind a gRPC health endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cory-johannsen/advancement/internal/config"
	"github.com/cory-johannsen/advancement/internal/game/catalog"
	"github.com/cory-johannsen/advancement/internal/game/condition"
	"github.com/cory-johannsen/advancement/internal/game/dice"
	"github.com/cory-johannsen/advancement/internal/game/faction"
	"github.com/cory-johannsen/advancement/internal/gameserver"
	"github.com/cory-johannsen/advancement/internal/observability"
	"github.com/cory-johannsen/advancement/internal/scripting"
	"github.com/cory-johannsen/advancement/internal/server"
	"github.com/cory-johannsen/advancement/internal/storage/postgres"
)

const serviceName = "progressiond"

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(serviceName, cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	diceRoller := dice.NewLoggedRoller(dice.NewCryptoSource(), logger)

	logger.Info("starting progression server",
		zap.String("grpc_addr", cfg.Server.Addr()),
	)

	catStart := time.Now()
	cat, err := catalog.LoadDirectory(cfg.Content.CatalogDir)
	if err != nil {
		logger.Fatal("loading catalog", zap.Error(err))
	}
	holder := catalog.NewHolder(cat)
	logger.Info("catalog loaded",
		zap.Int("skills", len(cat.Skills())),
		zap.Int("abilities", len(cat.Abilities())),
		zap.Duration("elapsed", time.Since(catStart)),
	)

	var effects *condition.Registry
	if cfg.Content.EffectsDir != "" {
		effects, err = condition.LoadDirectory(cfg.Content.EffectsDir)
		if err != nil {
			logger.Fatal("loading standing effects", zap.Error(err))
		}
		logger.Info("standing effects loaded", zap.Int("count", len(effects.All())))
	}

	var scriptMgr *scripting.Manager
	if cfg.Content.ScriptsDir != "" {
		scriptMgr = scripting.NewManager(diceRoller, logger)
		if err := scriptMgr.Load(cfg.Content.ScriptsDir, cfg.Content.ScriptInstructionLimit); err != nil {
			logger.Fatal("loading scripts", zap.String("dir", cfg.Content.ScriptsDir), zap.Error(err))
		}
		defer scriptMgr.Close()
	}

	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)

	factions := faction.NewRegistry()
	n, err := postgres.NewFactionRepository(pool.DB()).LoadInto(ctx, factions)
	if err != nil {
		logger.Fatal("loading factions", zap.Error(err))
	}
	logger.Info("factions loaded", zap.Int("count", n))

	svc := gameserver.NewService(gameserver.Deps{
		Config:   cfg,
		Catalog:  holder,
		Factions: factions,
		Store:    postgres.NewProgressRepository(pool.DB()),
		Effects:  effects,
		Scripts:  scriptMgr,
		Roller:   diceRoller,
		Logger:   logger,
	})

	scheduler := gameserver.NewScheduler(logger)
	scheduler.Every("daily-reset", cfg.Server.DailyResetInterval, func() { svc.ResetDaily() })
	scheduler.Every("effect-tick", cfg.Server.EffectTickInterval, func() { svc.TickEffects() })
	scheduler.Every("flush", cfg.Server.FlushInterval, func() {
		fctx, cancel := context.WithTimeout(ctx, cfg.Server.FlushInterval)
		defer cancel()
		if err := svc.FlushAll(fctx); err != nil {
			logger.Error("flushing players", zap.Error(err))
		}
	})
	scheduler.Every("db-health", 30*time.Second, func() {
		stats, err := pool.Health(ctx, 5*time.Second)
		fields := []zap.Field{
			zap.Int32("conns", stats.Total),
			zap.Int32("idle", stats.Idle),
			zap.Int32("acquired", stats.Acquired),
		}
		if err != nil {
			logger.Warn("database health check failed", append(fields, zap.Error(err))...)
			return
		}
		logger.Debug("database healthy", fields...)
	})

	healthSrv := health.NewServer()
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)

	lifecycle := server.NewLifecycle(logger)

	// Stopped last: every online player is written back before the pool closes.
	dbDone := make(chan struct{})
	lifecycle.Add("postgres", &server.FuncService{
		StartFn: func() error {
			<-dbDone
			return nil
		},
		StopFn: func() {
			fctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := svc.FlushAll(fctx); err != nil {
				logger.Error("final flush", zap.Error(err))
			}
			pool.Close()
			close(dbDone)
		},
	})

	lifecycle.Add("scheduler", server.NewContextService(scheduler.Run))

	lifecycle.Add("catalog-reload", server.NewContextService(func(ctx context.Context) {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := svc.ReloadCatalog(cfg.Content.CatalogDir); err != nil {
					logger.Error("reloading catalog", zap.Error(err))
				}
			}
		}
	}))

	lifecycle.Add("grpc", &server.FuncService{
		StartFn: func() error {
			lis, err := net.Listen("tcp", cfg.Server.Addr())
			if err != nil {
				return fmt.Errorf("listening on %s: %w", cfg.Server.Addr(), err)
			}
			healthSrv.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
			logger.Info("gRPC health server listening",
				zap.String("addr", lis.Addr().String()),
			)
			return grpcServer.Serve(lis)
		},
		StopFn: func() {
			healthSrv.Shutdown()
			grpcServer.GracefulStop()
		},
	})

	logger.Info("progression server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.Strings("jobs", scheduler.Names()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
