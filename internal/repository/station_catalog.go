package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/railmadad/complaint-api/internal/models"
)

const earthRadiusKm = 6371.0

// StationCatalog is an in-memory list of known stations loaded at startup.
type StationCatalog struct {
	stations []models.Station
	byCode   map[string]models.Station
}

// LoadStationCatalog reads a JSON array of {name, code, lat, lon} records.
func LoadStationCatalog(path string) (*StationCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read station catalog: %w", err)
	}
	var stations []models.Station
	if err := json.Unmarshal(raw, &stations); err != nil {
		return nil, fmt.Errorf("decode station catalog: %w", err)
	}
	return NewStationCatalog(stations)
}

// NewStationCatalog validates and indexes the provided stations.
func NewStationCatalog(stations []models.Station) (*StationCatalog, error) {
	catalog := &StationCatalog{
		stations: make([]models.Station, 0, len(stations)),
		byCode:   make(map[string]models.Station, len(stations)),
	}
	for i, st := range stations {
		st.Name = strings.TrimSpace(st.Name)
		st.Code = strings.ToUpper(strings.TrimSpace(st.Code))
		if st.Name == "" || st.Code == "" {
			return nil, fmt.Errorf("station %d: name and code are required", i)
		}
		if st.Latitude < -90 || st.Latitude > 90 || st.Longitude < -180 || st.Longitude > 180 {
			return nil, fmt.Errorf("station %s: coordinates out of range", st.Code)
		}
		if _, dup := catalog.byCode[st.Code]; dup {
			return nil, fmt.Errorf("station %s: duplicate code", st.Code)
		}
		catalog.byCode[st.Code] = st
		catalog.stations = append(catalog.stations, st)
	}
	return catalog, nil
}

// Stations returns a copy of the catalog entries.
func (c *StationCatalog) Stations() []models.Station {
	out := make([]models.Station, len(c.stations))
	copy(out, c.stations)
	return out
}

// Lookup finds a station by its code.
func (c *StationCatalog) Lookup(code string) (models.Station, bool) {
	st, ok := c.byCode[strings.ToUpper(code)]
	return st, ok
}

// Nearest returns the closest station within radiusKm, or nil when none qualifies.
func (c *StationCatalog) Nearest(ctx context.Context, lat, lon, radiusKm float64) (*models.StationMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var best *models.StationMatch
	for _, st := range c.stations {
		d := HaversineKm(lat, lon, st.Latitude, st.Longitude)
		if d > radiusKm {
			continue
		}
		if best == nil || d < best.DistanceKm {
			best = &models.StationMatch{Station: st, DistanceKm: d}
		}
	}
	return best, nil
}

// HaversineKm returns the great-circle distance between two points.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
