// Package cache keeps rendered leaderboard pages in Redis.
//
// Pages are stored under a generation number. Invalidate bumps the
// generation, so every page written before it becomes unreachable at once
// and expires on its own TTL. Set writes under the generation its Get saw,
// so a page read from the store before an Invalidate lands in a dead
// generation.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/playperu/geoguess/internal/game"
)

const defaultPrefix = "geoguess:leaderboard"

type Leaderboard struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

var _ game.LeaderboardCache = (*Leaderboard)(nil)

func NewLeaderboard(client *redis.Client, ttl time.Duration) *Leaderboard {
	return &Leaderboard{client: client, ttl: ttl, prefix: defaultPrefix}
}

func (c *Leaderboard) generationKey() string {
	return c.prefix + ":gen"
}

func (c *Leaderboard) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading generation: %w", err)
	}
	return gen, nil
}

func (c *Leaderboard) pageKey(gen int64, key string) string {
	return fmt.Sprintf("%s:%d:%s", c.prefix, gen, key)
}

func (c *Leaderboard) Get(ctx context.Context, key string) (game.LeaderboardPage, int64, bool, error) {
	var page game.LeaderboardPage

	gen, err := c.generation(ctx)
	if err != nil {
		return page, 0, false, err
	}
	raw, err := c.client.Get(ctx, c.pageKey(gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return page, gen, false, nil
	}
	if err != nil {
		return page, gen, false, fmt.Errorf("reading page: %w", err)
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return page, gen, false, fmt.Errorf("decoding page: %w", err)
	}
	return page, gen, true, nil
}

func (c *Leaderboard) Set(ctx context.Context, key string, gen int64, page game.LeaderboardPage) error {
	raw, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("encoding page: %w", err)
	}
	if err := c.client.Set(ctx, c.pageKey(gen, key), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("writing page: %w", err)
	}
	return nil
}

func (c *Leaderboard) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, c.generationKey()).Err(); err != nil {
		return fmt.Errorf("bumping generation: %w", err)
	}
	return nil
}

// Open connects to the Redis server at rawURL and verifies it answers.
func Open(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}
