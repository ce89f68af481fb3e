package locations

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playperu/geoguess/internal/geoguess"
)

const seed = `
provider: mapillary
locations:
  - id: paris-1
    lat: 48.8584
    lng: 2.2945
    imageId: "498763468214164"
    country: FR
    region: Europe
  - id: lima-1
    lat: -12.0464
    lng: -77.0428
    imageId: "313726640310330"
    country: PE
    region: south-america
    verified: false
  - id: tokyo-1
    lat: 35.6595
    lng: 139.7005
    imageId: kv-1
    country: JP
    region: asia
    provider: kartaview
`

func TestDecode(t *testing.T) {
	got, err := Decode(strings.NewReader(seed))
	require.NoError(t, err)

	want := []geoguess.Location{
		{ID: "paris-1", Lat: 48.8584, Lng: 2.2945, ImageID: "498763468214164", Country: "FR", Region: "europe", Provider: "mapillary", Verified: true},
		{ID: "lima-1", Lat: -12.0464, Lng: -77.0428, ImageID: "313726640310330", Country: "PE", Region: "south-america", Provider: "mapillary", Verified: false},
		{ID: "tokyo-1", Lat: 35.6595, Lng: 139.7005, ImageID: "kv-1", Country: "JP", Region: "asia", Provider: "kartaview", Verified: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Decode mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeReportsEveryBadEntry(t *testing.T) {
	_, err := Decode(strings.NewReader(`
locations:
  - id: a
    lat: 91
    lng: 0
    imageId: x
    region: r
  - id: b
    lat: 0
    lng: 0
    region: r
  - id: c
    lat: 0
    lng: 0
    imageId: y
    region: r
  - id: c
    lat: 1
    lng: 1
    imageId: z
    region: r
`))
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "location 0")
	assert.Contains(t, msg, "location 1: imageId is required")
	assert.Contains(t, msg, `location 3: id "c" already used by location 2`)
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode(strings.NewReader("locations:\n  - id: a\n    latitude: 1\n"))
	assert.Error(t, err)
}

func TestDecodeEmpty(t *testing.T) {
	got, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
