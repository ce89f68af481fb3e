package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playperu/geoguess/internal/config"
	"github.com/playperu/geoguess/internal/database"
	"github.com/playperu/geoguess/internal/game"
	"github.com/playperu/geoguess/internal/geoguess"
	"github.com/playperu/geoguess/internal/handler/health"
	"github.com/playperu/geoguess/internal/migrations"
	"github.com/playperu/geoguess/internal/sampler"
	"github.com/playperu/geoguess/internal/store/postgres"
	"github.com/playperu/geoguess/internal/store/sqlite"
)

type recordStore interface {
	game.Store
	UpsertLocations(ctx context.Context, locs []geoguess.Location) error
	AbandonIdle(ctx context.Context, cutoff time.Time) (int64, error)
}

// backend is the configured database with its migrations applied.
type backend struct {
	name  string
	store recordStore
	pool  sampler.Pool
	check health.Checker
	close func()
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		pool, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		sqlDB := database.SQLDB(pool)
		err = migrations.RunDialect(sqlDB, migrations.Postgres)
		sqlDB.Close()
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("connected to postgres")

		store := postgres.New(pool)
		return &backend{
			name:  "postgres",
			store: store,
			pool:  store.Pool(cfg.ImageryProvider),
			check: health.CheckFunc(pool.Ping),
			close: pool.Close,
		}, nil

	default:
		db, err := database.Open(ctx, cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("connecting to sqlite: %w", err)
		}
		if err := migrations.Run(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("connected to sqlite", "path", cfg.DBPath)

		store := sqlite.New(db)
		return &backend{
			name:  "sqlite",
			store: store,
			pool:  store.Pool(cfg.ImageryProvider),
			check: health.CheckFunc(db.PingContext),
			close: func() { db.Close() },
		}, nil
	}
}
