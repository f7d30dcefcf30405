package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railmadad/complaint-api/internal/models"
)

func testStations() []models.Station {
	return []models.Station{
		{Name: "New Delhi", Code: "NDLS", Latitude: 28.6428, Longitude: 77.2197},
		{Name: "Hazrat Nizamuddin", Code: "nzm", Latitude: 28.5884, Longitude: 77.2537},
		{Name: "Mumbai Central", Code: "MMCT", Latitude: 18.9696, Longitude: 72.8194},
	}
}

func TestStationCatalogNearest(t *testing.T) {
	catalog, err := NewStationCatalog(testStations())
	require.NoError(t, err)

	match, err := catalog.Nearest(context.Background(), 28.6430, 77.2190, 50)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "NDLS", match.Station.Code)
	assert.Less(t, match.DistanceKm, 0.5)

	match, err = catalog.Nearest(context.Background(), 28.5890, 77.2540, 50)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "NZM", match.Station.Code)
}

func TestStationCatalogNothingWithinRadius(t *testing.T) {
	catalog, err := NewStationCatalog(testStations())
	require.NoError(t, err)

	match, err := catalog.Nearest(context.Background(), 13.0827, 80.2707, 50)
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestStationCatalogRejectsInvalidEntries(t *testing.T) {
	_, err := NewStationCatalog([]models.Station{{Name: "", Code: "X"}})
	assert.Error(t, err)

	_, err = NewStationCatalog([]models.Station{{Name: "A", Code: "A", Latitude: 91}})
	assert.Error(t, err)

	_, err = NewStationCatalog([]models.Station{{Name: "A", Code: "A"}, {Name: "B", Code: "a"}})
	assert.Error(t, err)
}

func TestLoadStationCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"New Delhi","code":"NDLS","lat":28.6428,"lon":77.2197}]`), 0o600))

	catalog, err := LoadStationCatalog(path)
	require.NoError(t, err)
	st, ok := catalog.Lookup("ndls")
	require.True(t, ok)
	assert.Equal(t, "New Delhi", st.Name)

	_, err = LoadStationCatalog(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestHaversineKm(t *testing.T) {
	assert.InDelta(t, 0, HaversineKm(10, 10, 10, 10), 1e-9)
	// New Delhi to Mumbai Central is roughly 1140 km as the crow flies.
	assert.InDelta(t, 1140, HaversineKm(28.6428, 77.2197, 18.9696, 72.8194), 20)
}

func TestStationGeoIndexWithoutRedisUsesCatalog(t *testing.T) {
	catalog, err := NewStationCatalog(testStations())
	require.NoError(t, err)
	index := NewStationGeoIndex(nil, catalog, nil)

	require.NoError(t, index.Seed(context.Background()))
	match, err := index.Nearest(context.Background(), 18.97, 72.82, 50)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "MMCT", match.Station.Code)
}
