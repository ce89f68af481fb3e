package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/playperu/geoguess/internal/geoguess"
	"github.com/playperu/geoguess/internal/sampler"
)

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
	rows, err := p.store.db.QueryContext(ctx, `
		SELECT DISTINCT region FROM locations
		WHERE provider = ? AND verified = 1
		ORDER BY region
	`, p.provider)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regions []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}
	return regions, rows.Err()
}

const locationColumns = `id, lat, lng, image_id, country, region, provider, verified`

func (p *Pool) LocationsInRegion(ctx context.Context, region string) ([]geoguess.Location, error) {
	return p.store.queryLocations(ctx, `
		SELECT `+locationColumns+` FROM locations
		WHERE provider = ? AND verified = 1 AND region = ?
		ORDER BY id
	`, p.provider, region)
}

func (p *Pool) VerifiedLocations(ctx context.Context, exclude []string) ([]geoguess.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations WHERE provider = ? AND verified = 1`
	args := []any{p.provider}
	if len(exclude) > 0 {
		query += ` AND id NOT IN (?` + strings.Repeat(", ?", len(exclude)-1) + `)`
		for _, id := range exclude {
			args = append(args, id)
		}
	}
	return p.store.queryLocations(ctx, query+` ORDER BY id`, args...)
}

// UpsertLocations writes locs in one transaction, replacing entries that
// share an id.
func (s *Store) UpsertLocations(ctx context.Context, locs []geoguess.Location) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, l := range locs {
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO locations (`+locationColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				lat = excluded.lat,
				lng = excluded.lng,
				image_id = excluded.image_id,
				country = excluded.country,
				region = excluded.region,
				provider = excluded.provider,
				verified = excluded.verified
		`, l.ID, l.Lat, l.Lng, l.ImageID, l.Country, l.Region, l.Provider, boolInt(l.Verified))
		if err != nil {
			return fmt.Errorf("upserting location %s: %w", l.ID, err)
		}
	}
	return sqlTx.Commit()
}

func (s *Store) queryLocations(ctx context.Context, query string, args ...any) ([]geoguess.Location, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locs []geoguess.Location
	for rows.Next() {
		var l geoguess.Location
		if err := rows.Scan(&l.ID, &l.Lat, &l.Lng, &l.ImageID, &l.Country, &l.Region, &l.Provider, &l.Verified); err != nil {
			return nil, err
		}
		locs = append(locs, l)
	}
	return locs, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
