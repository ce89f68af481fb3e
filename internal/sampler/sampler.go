// Package sampler picks the panorama locations of a new game from the pool,
// spreading them over regions so one game rarely clusters in one place.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/playperu/geoguess/internal/geoguess"
)

var (
	ErrNoLocationsAvailable  = errors.New("no locations available")
	ErrInsufficientLocations = errors.New("insufficient locations")
)

// Pool is the read side of the location store, already scoped to one
// imagery provider and to verified entries.
type Pool interface {
	Regions(ctx context.Context) ([]string, error)
	LocationsInRegion(ctx context.Context, region string) ([]geoguess.Location, error)
	VerifiedLocations(ctx context.Context, exclude []string) ([]geoguess.Location, error)
}

type Sampler struct {
	pool Pool

	mu  sync.Mutex // guards rng; Sample runs concurrently per request
	rng *rand.Rand
}

// New returns a Sampler whose shuffles are fully determined by seed.
func New(pool Pool, seed uint64) *Sampler {
	return &Sampler{
		pool: pool,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// NewRandom returns a Sampler seeded from the runtime random source.
func NewRandom(pool Pool) *Sampler {
	return New(pool, rand.Uint64())
}

// Sample returns exactly count distinct locations in random order.
//
// Regions are visited in shuffled order and each contributes at most
// ceil(count/regions) entries. Any shortfall is backfilled from the rest of
// the pool regardless of region.
func (s *Sampler) Sample(ctx context.Context, count int) ([]geoguess.Location, error) {
	if count <= 0 {
		return nil, fmt.Errorf("sample count must be positive, got %d", count)
	}

	regions, err := s.pool.Regions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing regions: %w", err)
	}
	if len(regions) == 0 {
		return nil, ErrNoLocationsAvailable
	}

	s.shuffleStrings(regions)
	perRegion := (count + len(regions) - 1) / len(regions)

	selected := make([]geoguess.Location, 0, count)
	used := make(map[string]struct{}, count)

	for _, region := range regions {
		if len(selected) >= count {
			break
		}

		candidates, err := s.pool.LocationsInRegion(ctx, region)
		if err != nil {
			return nil, fmt.Errorf("listing locations in %q: %w", region, err)
		}
		s.shuffleLocations(candidates)

		take := min(perRegion, count-len(selected))
		for _, loc := range candidates {
			if take == 0 {
				break
			}
			if _, dup := used[loc.ID]; dup {
				continue
			}
			used[loc.ID] = struct{}{}
			selected = append(selected, loc)
			take--
		}
	}

	if len(selected) < count {
		exclude := make([]string, 0, len(used))
		for id := range used {
			exclude = append(exclude, id)
		}
		rest, err := s.pool.VerifiedLocations(ctx, exclude)
		if err != nil {
			return nil, fmt.Errorf("listing backfill locations: %w", err)
		}
		s.shuffleLocations(rest)

		for _, loc := range rest {
			if len(selected) >= count {
				break
			}
			if _, dup := used[loc.ID]; dup {
				continue
			}
			used[loc.ID] = struct{}{}
			selected = append(selected, loc)
		}
	}

	if len(selected) < count {
		return nil, fmt.Errorf("%w: wanted %d, pool has %d", ErrInsufficientLocations, count, len(selected))
	}

	s.shuffleLocations(selected)
	return selected, nil
}

func (s *Sampler) shuffleStrings(v []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(len(v), func(i, j int) { v[i], v[j] = v[j], v[i] })
}

func (s *Sampler) shuffleLocations(v []geoguess.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(len(v), func(i, j int) { v[i], v[j] = v[j], v[i] })
}
