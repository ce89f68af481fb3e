package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playperu/geoguess/internal/auth"
	"github.com/playperu/geoguess/internal/database"
	"github.com/playperu/geoguess/internal/store/sqlite"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "geoguess.db")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", path)
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("JWT_ISSUER", "geoguess")
	t.Setenv("LOG_LEVEL", "ERROR")
	t.Setenv("REDIS_URL", "")
	return path
}

func TestSeedCommand(t *testing.T) {
	path := setupEnv(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, run(ctx, []string{"geoguess", "seed", "--file", "testdata/locations.yaml"}, &out))
	// Seeding twice replaces rather than duplicates.
	require.NoError(t, run(ctx, []string{"geoguess", "seed", "--file", "testdata/locations.yaml"}, &out))

	db, err := database.Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	pool := sqlite.New(db).Pool("mapillary")
	locs, err := pool.VerifiedLocations(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, locs, 5)

	regions, err := pool.Regions(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"asia", "europe", "south america"}, regions)
}

func TestSeedCommandMissingFile(t *testing.T) {
	setupEnv(t)
	var out bytes.Buffer
	err := run(context.Background(), []string{"geoguess", "seed", "--file", "testdata/nope.yaml"}, &out)
	assert.ErrorContains(t, err, "opening seed file")
}

func TestTokenCommand(t *testing.T) {
	setupEnv(t)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"geoguess", "token", "--user", "u-1", "--name", "Ana"}, &out))

	id, err := auth.New([]byte("cli-secret"), "geoguess").Verify(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, auth.Identity{UserID: "u-1", Name: "Ana"}, id)
}

func TestTokenCommandRequiresSecret(t *testing.T) {
	setupEnv(t)
	t.Setenv("JWT_SECRET", "")

	var out bytes.Buffer
	err := run(context.Background(), []string{"geoguess", "token", "--user", "u-1"}, &out)
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestAbandonCommand(t *testing.T) {
	setupEnv(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, run(ctx, []string{"geoguess", "migrate"}, &out))
	require.NoError(t, run(ctx, []string{"geoguess", "abandon", "--idle", "1h"}, &out))
	assert.ErrorContains(t, run(ctx, []string{"geoguess", "abandon", "--idle", "0s"}, &out), "--idle")
}
