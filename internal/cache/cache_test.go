package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/playperu/geoguess/internal/cache"
	"github.com/playperu/geoguess/internal/game"
	"github.com/playperu/geoguess/internal/geoguess"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	ctx := context.Background()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() { testcontainers.TerminateContainer(ctr) })

	endpoint, err := ctr.Endpoint(ctx, "")
	require.NoError(t, err)

	rdb, err := cache.Open(ctx, "redis://"+endpoint)
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestLeaderboardCache(t *testing.T) {
	rdb := newRedis(t)
	c := cache.NewLeaderboard(rdb, time.Minute)
	ctx := context.Background()

	_, gen, ok, err := c.Get(ctx, "all:1:20")
	require.NoError(t, err)
	assert.False(t, ok)

	page := game.LeaderboardPage{
		Entries: []game.LeaderboardEntry{{
			Rank:        1,
			GameID:      "g1",
			UserID:      "alice",
			UserName:    "Alice",
			TotalScore:  24000,
			Mode:        geoguess.ModeClassic,
			CompletedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		}},
		Total:    1,
		Page:     1,
		PageSize: 20,
	}
	require.NoError(t, c.Set(ctx, "all:1:20", gen, page))

	got, _, ok, err := c.Get(ctx, "all:1:20")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, page, got)

	require.NoError(t, c.Invalidate(ctx))
	_, _, ok, err = c.Get(ctx, "all:1:20")
	require.NoError(t, err)
	assert.False(t, ok, "pages from an older generation are unreachable")
}

func TestLeaderboardCacheSetAfterInvalidate(t *testing.T) {
	rdb := newRedis(t)
	c := cache.NewLeaderboard(rdb, time.Minute)
	ctx := context.Background()

	_, gen, ok, err := c.Get(ctx, "classic:1:20")
	require.NoError(t, err)
	require.False(t, ok)

	// A game completes while the stale page is being read from the store.
	require.NoError(t, c.Invalidate(ctx))
	stale := game.LeaderboardPage{Entries: []game.LeaderboardEntry{}, Page: 1, PageSize: 20}
	require.NoError(t, c.Set(ctx, "classic:1:20", gen, stale))

	_, newGen, ok, err := c.Get(ctx, "classic:1:20")
	require.NoError(t, err)
	assert.False(t, ok, "a page computed before Invalidate must not be served after it")
	assert.Greater(t, newGen, gen)
}

func TestOpenRejectsBadURL(t *testing.T) {
	_, err := cache.Open(context.Background(), "not a url")
	assert.Error(t, err)
}
