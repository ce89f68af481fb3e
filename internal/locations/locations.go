// Package locations loads the panorama location pool from YAML seed files.
package locations

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/playperu/geoguess/internal/geo"
	"github.com/playperu/geoguess/internal/geoguess"
)

// File is the seed file layout. Entries inherit the file's provider unless
// they set their own.
type File struct {
	Provider  string  `yaml:"provider"`
	Locations []Entry `yaml:"locations"`
}

type Entry struct {
	ID       string  `yaml:"id"`
	Lat      float64 `yaml:"lat"`
	Lng      float64 `yaml:"lng"`
	ImageID  string  `yaml:"imageId"`
	Country  string  `yaml:"country"`
	Region   string  `yaml:"region"`
	Provider string  `yaml:"provider"`
	Verified *bool   `yaml:"verified"`
}

// Load reads a seed file from path.
func Load(path string) ([]geoguess.Location, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses and validates a seed file. Every invalid entry is reported.
func Decode(r io.Reader) ([]geoguess.Location, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decoding seed file: %w", err)
	}

	defaultProvider := file.Provider
	if defaultProvider == "" {
		defaultProvider = "mapillary"
	}

	var (
		locs = make([]geoguess.Location, 0, len(file.Locations))
		errs []error
		seen = make(map[string]int, len(file.Locations))
	)
	for i, e := range file.Locations {
		if err := validate(e); err != nil {
			errs = append(errs, fmt.Errorf("location %d: %w", i, err))
			continue
		}
		if prev, dup := seen[e.ID]; dup {
			errs = append(errs, fmt.Errorf("location %d: id %q already used by location %d", i, e.ID, prev))
			continue
		}
		seen[e.ID] = i

		l := geoguess.Location{
			ID:       e.ID,
			Lat:      e.Lat,
			Lng:      e.Lng,
			ImageID:  e.ImageID,
			Country:  e.Country,
			Region:   strings.ToLower(strings.TrimSpace(e.Region)),
			Provider: e.Provider,
			Verified: e.Verified == nil || *e.Verified,
		}
		if l.Provider == "" {
			l.Provider = defaultProvider
		}
		locs = append(locs, l)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return locs, nil
}

func validate(e Entry) error {
	switch {
	case e.ID == "":
		return errors.New("id is required")
	case e.ImageID == "":
		return errors.New("imageId is required")
	case strings.TrimSpace(e.Region) == "":
		return errors.New("region is required")
	case !geo.ValidCoordinate(e.Lat, e.Lng):
		return fmt.Errorf("coordinate (%g, %g) out of range", e.Lat, e.Lng)
	}
	return nil
}
