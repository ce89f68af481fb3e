package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	DBDriver    string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBPath      string `env:"DB_PATH" envDefault:"data/geoguess.db"`
	DatabaseURL string `env:"DATABASE_URL"`

	// RedisURL enables the leaderboard cache when set.
	RedisURL            string        `env:"REDIS_URL"`
	LeaderboardCacheTTL time.Duration `env:"LEADERBOARD_CACHE_TTL" envDefault:"30s"`

	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"geoguess"`

	ImageryProvider string `env:"IMAGERY_PROVIDER" envDefault:"mapillary"`
	// SamplerSeed fixes the location shuffle when non-zero.
	SamplerSeed uint64 `env:"SAMPLER_SEED" envDefault:"0"`

	GuessRateLimit float64 `env:"GUESS_RATE_LIMIT" envDefault:"5"`
	GuessRateBurst int     `env:"GUESS_RATE_BURST" envDefault:"10"`

	CORSOrigins    []string `env:"CORS_ORIGINS" envSeparator:","`
	MetricsEnabled bool     `env:"METRICS_ENABLED" envDefault:"true"`
}

// Load reads an optional .env file and then the environment. Variables
// already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return errors.New("DB_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.GuessRateLimit <= 0 || c.GuessRateBurst <= 0 {
		return errors.New("GUESS_RATE_LIMIT and GUESS_RATE_BURST must be positive")
	}
	if c.LeaderboardCacheTTL <= 0 {
		return errors.New("LEADERBOARD_CACHE_TTL must be positive")
	}
	return nil
}
