package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/playperu/geoguess/internal/geoguess"
	"github.com/playperu/geoguess/internal/sampler"
)

// ErrDuplicateImage reports an image already registered under another
// location id for the same provider.
var ErrDuplicateImage = errors.New("image already registered")

// Pool is the verified location pool of one imagery provider.
type Pool struct {
	store    *Store
	provider string
}

var _ sampler.Pool = (*Pool)(nil)

func (s *Store) Pool(provider string) *Pool {
	return &Pool{store: s, provider: provider}
}

func (p *Pool) Regions(ctx context.Context) ([]string, error) {
	rows, err := p.store.pool.Query(ctx, `
		SELECT DISTINCT region FROM locations
		WHERE provider = $1 AND verified
		ORDER BY region
	`, p.provider)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

const locationColumns = `id, lat, lng, image_id, country, region, provider, verified`

func (p *Pool) LocationsInRegion(ctx context.Context, region string) ([]geoguess.Location, error) {
	return p.store.queryLocations(ctx, `
		SELECT `+locationColumns+` FROM locations
		WHERE provider = $1 AND verified AND region = $2
		ORDER BY id
	`, p.provider, region)
}

func (p *Pool) VerifiedLocations(ctx context.Context, exclude []string) ([]geoguess.Location, error) {
	if exclude == nil {
		exclude = []string{}
	}
	return p.store.queryLocations(ctx, `
		SELECT `+locationColumns+` FROM locations
		WHERE provider = $1 AND verified AND NOT (id = ANY($2))
		ORDER BY id
	`, p.provider, exclude)
}

// UpsertLocations writes locs in one transaction, replacing entries that
// share an id.
func (s *Store) UpsertLocations(ctx context.Context, locs []geoguess.Location) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, l := range locs {
			_, err := tx.Exec(ctx, `
				INSERT INTO locations (`+locationColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				ON CONFLICT (id) DO UPDATE SET
					lat = EXCLUDED.lat,
					lng = EXCLUDED.lng,
					image_id = EXCLUDED.image_id,
					country = EXCLUDED.country,
					region = EXCLUDED.region,
					provider = EXCLUDED.provider,
					verified = EXCLUDED.verified
			`, l.ID, l.Lat, l.Lng, l.ImageID, l.Country, l.Region, l.Provider, l.Verified)
			if err != nil {
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.Code == "23505" {
					return fmt.Errorf("location %s: %w", l.ID, ErrDuplicateImage)
				}
				return fmt.Errorf("upserting location %s: %w", l.ID, err)
			}
		}
		return nil
	})
}

func (s *Store) queryLocations(ctx context.Context, query string, args ...any) ([]geoguess.Location, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (geoguess.Location, error) {
		var l geoguess.Location
		err := row.Scan(&l.ID, &l.Lat, &l.Lng, &l.ImageID, &l.Country, &l.Region, &l.Provider, &l.Verified)
		return l, err
	})
}
