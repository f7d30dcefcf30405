package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/railmadad/complaint-api/internal/models"
)

// StationGeoKey is the Redis GEO set holding station positions.
const StationGeoKey = "stations:geo"

// geoSearchCandidates bounds how many nearby members are checked against the
// catalog before falling back to a catalog scan.
const geoSearchCandidates = 5

// StationGeoIndex answers nearest-station queries from a Redis GEO set and
// falls back to the in-memory catalog when Redis is unavailable.
type StationGeoIndex struct {
	client  *redis.Client
	catalog *StationCatalog
	logger  *zap.Logger
}

// NewStationGeoIndex constructs the index. A nil client always uses the catalog.
func NewStationGeoIndex(client *redis.Client, catalog *StationCatalog, logger *zap.Logger) *StationGeoIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StationGeoIndex{client: client, catalog: catalog, logger: logger}
}

// Seed writes every catalog station into the GEO set, keyed by station code.
func (i *StationGeoIndex) Seed(ctx context.Context) error {
	if i.client == nil {
		return nil
	}
	stations := i.catalog.Stations()
	if len(stations) == 0 {
		return nil
	}
	locations := make([]*redis.GeoLocation, 0, len(stations))
	for _, st := range stations {
		locations = append(locations, &redis.GeoLocation{
			Name:      st.Code,
			Longitude: st.Longitude,
			Latitude:  st.Latitude,
		})
	}
	if err := i.client.GeoAdd(ctx, StationGeoKey, locations...).Err(); err != nil {
		return fmt.Errorf("seed station geo index: %w", err)
	}
	i.logger.Info("station geo index seeded", zap.Int("stations", len(locations)))
	return nil
}

// Nearest returns the closest station within radiusKm, or nil when none qualifies.
func (i *StationGeoIndex) Nearest(ctx context.Context, lat, lon, radiusKm float64) (*models.StationMatch, error) {
	if i.client == nil {
		return i.catalog.Nearest(ctx, lat, lon, radiusKm)
	}

	res, err := i.client.GeoSearchLocation(ctx, StationGeoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lon,
			Latitude:   lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      geoSearchCandidates,
		},
		WithDist: true,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		i.logger.Warn("station geo search failed, using catalog", zap.Error(err))
		return i.catalog.Nearest(ctx, lat, lon, radiusKm)
	}

	return i.pick(ctx, res, lat, lon, radiusKm)
}

// pick returns the first GEO result still present in the catalog. When the
// set only holds stale members the catalog is scanned instead.
func (i *StationGeoIndex) pick(ctx context.Context, res []redis.GeoLocation, lat, lon, radiusKm float64) (*models.StationMatch, error) {
	for _, item := range res {
		st, ok := i.catalog.Lookup(item.Name)
		if !ok {
			i.logger.Warn("geo index member missing from catalog", zap.String("member", item.Name))
			continue
		}
		return &models.StationMatch{Station: st, DistanceKm: item.Dist}, nil
	}
	if len(res) > 0 {
		return i.catalog.Nearest(ctx, lat, lon, radiusKm)
	}
	return nil, nil
}
