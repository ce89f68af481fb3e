package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/playperu/geoguess/internal/auth"
	"github.com/playperu/geoguess/internal/cache"
	"github.com/playperu/geoguess/internal/config"
	"github.com/playperu/geoguess/internal/game"
	"github.com/playperu/geoguess/internal/handler/health"
	"github.com/playperu/geoguess/internal/locations"
	"github.com/playperu/geoguess/internal/metrics"
	"github.com/playperu/geoguess/internal/sampler"
	"github.com/playperu/geoguess/internal/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	var (
		cfg    *config.Config
		logger *slog.Logger
	)

	app := &cli.App{
		Name:      "geoguess",
		Usage:     "street-imagery guessing game backend",
		Writer:    stdout,
		ErrWriter: stdout,
		Before: func(c *cli.Context) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logger = slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
				Level: cfg.LogLevel,
			}))
			return nil
		},
		Action: func(c *cli.Context) error {
			return serve(c.Context, cfg, logger)
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP server",
				Action: func(c *cli.Context) error {
					return serve(c.Context, cfg, logger)
				},
			},
			{
				Name:  "migrate",
				Usage: "apply pending database migrations",
				Action: func(c *cli.Context) error {
					b, err := openBackend(c.Context, cfg, logger)
					if err != nil {
						return err
					}
					b.close()
					logger.Info("migrations applied", "driver", b.name)
					return nil
				},
			},
			{
				Name:  "seed",
				Usage: "load panorama locations from a YAML file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "seed file", Required: true},
				},
				Action: func(c *cli.Context) error {
					return seed(c.Context, cfg, logger, c.String("file"))
				},
			},
			{
				Name:  "abandon",
				Usage: "mark in-progress games idle for longer than --idle as abandoned",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "idle", Value: 24 * time.Hour, Usage: "idle time before a game is abandoned"},
				},
				Action: func(c *cli.Context) error {
					return abandon(c.Context, cfg, logger, c.Duration("idle"))
				},
			},
			{
				Name:  "token",
				Usage: "mint a player token for local development",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Usage: "user id (subject)", Required: true},
					&cli.StringFlag{Name: "name", Usage: "display name"},
					&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour, Usage: "token lifetime"},
				},
				Action: func(c *cli.Context) error {
					tokens, err := newTokens(cfg)
					if err != nil {
						return err
					}
					tok, err := tokens.Issue(c.String("user"), c.String("name"), c.Duration("ttl"))
					if err != nil {
						return err
					}
					fmt.Fprintln(stdout, tok)
					return nil
				},
			},
		},
	}

	return app.RunContext(ctx, args)
}

func newTokens(cfg *config.Config) (*auth.Tokens, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return auth.New([]byte(cfg.JWTSecret), cfg.JWTIssuer), nil
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	tokens, err := newTokens(cfg)
	if err != nil {
		return err
	}

	// --- Database ---
	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()

	checks := map[string]health.Checker{b.name: b.check}
	var opts []game.Option

	// --- Redis ---
	if cfg.RedisURL != "" {
		rdb, err := cache.Open(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		logger.Info("connected to redis")

		checks["redis"] = health.CheckFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		opts = append(opts, game.WithCache(cache.NewLeaderboard(rdb, cfg.LeaderboardCacheTTL)))
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
		opts = append(opts, game.WithMetrics(m))
	}

	var smp *sampler.Sampler
	if cfg.SamplerSeed != 0 {
		smp = sampler.New(b.pool, cfg.SamplerSeed)
	} else {
		smp = sampler.NewRandom(b.pool)
	}
	opts = append(opts, game.WithProvider(cfg.ImageryProvider))

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Service:     game.NewService(b.store, smp, logger, opts...),
		Tokens:      tokens,
		Metrics:     m,
		Health:      checks,
		CORSOrigins: cfg.CORSOrigins,
		GuessLimit:  rate.Limit(cfg.GuessRateLimit),
		GuessBurst:  cfg.GuessRateBurst,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func seed(ctx context.Context, cfg *config.Config, logger *slog.Logger, path string) error {
	locs, err := locations.Load(path)
	if err != nil {
		return err
	}

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()

	if err := b.store.UpsertLocations(ctx, locs); err != nil {
		return fmt.Errorf("storing locations: %w", err)
	}
	logger.Info("locations seeded", "file", path, "count", len(locs))
	return nil
}

func abandon(ctx context.Context, cfg *config.Config, logger *slog.Logger, idle time.Duration) error {
	if idle <= 0 {
		return errors.New("--idle must be positive")
	}

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()

	n, err := b.store.AbandonIdle(ctx, time.Now().Add(-idle))
	if err != nil {
		return fmt.Errorf("abandoning idle games: %w", err)
	}
	logger.Info("idle games abandoned", "count", n, "idle", idle.String())
	return nil
}
