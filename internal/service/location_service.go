package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/railmadad/complaint-api/internal/models"
	appErrors "github.com/railmadad/complaint-api/pkg/errors"
)

type stationLocator interface {
	Nearest(ctx context.Context, lat, lon, radiusKm float64) (*models.StationMatch, error)
}

// LocationConfig tunes station lookups.
type LocationConfig struct {
	SearchRadiusKm float64
	Timeout        time.Duration
}

// LocationService turns raw GPS coordinates into railway context.
type LocationService struct {
	locator  stationLocator
	validate *validator.Validate
	config   LocationConfig
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
}

// NewLocationService constructs a LocationService.
func NewLocationService(locator stationLocator, config LocationConfig, metrics *MetricsService, logger *zap.Logger) *LocationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.SearchRadiusKm <= 0 {
		config.SearchRadiusKm = 50
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &LocationService{
		locator:  locator,
		validate: newJSONValidator(),
		config:   config,
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// newJSONValidator reports field errors under their JSON names.
func newJSONValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		case "gte":
			parts = append(parts, fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param()))
		case "lte":
			parts = append(parts, fmt.Sprintf("%s must be <= %s", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fe.Field()+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}

// Resolve finds the nearest station for the coordinates. Out-of-range
// coordinates are rejected; a failed lookup still returns the raw position
// together with a LOCATION_UNRESOLVED warning.
func (s *LocationService) Resolve(ctx context.Context, req models.LocationRequest) (*models.Location, *models.Warning, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, validationMessage(err))
	}
	lat, lon := *req.Latitude, *req.Longitude
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "coordinates out of range")
	}

	loc := &models.Location{
		Latitude:   lat,
		Longitude:  lon,
		AccuracyM:  req.AccuracyM,
		CapturedAt: s.now(),
	}

	if s.locator == nil {
		return s.unresolved(loc, fmt.Errorf("no station locator configured"))
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()
	start := time.Now()
	match, err := s.locator.Nearest(lookupCtx, lat, lon, s.config.SearchRadiusKm)
	s.metrics.ObserveDependency(DependencyLocator, err, time.Since(start))
	if err != nil {
		return s.unresolved(loc, err)
	}

	if match == nil {
		loc.RailwayContext = fmt.Sprintf("No station found within %s km.", formatKm(s.config.SearchRadiusKm))
		return loc, nil, nil
	}

	distance := math.Round(match.DistanceKm*100) / 100
	name := match.Station.Name
	code := match.Station.Code
	loc.NearestStation = &name
	loc.StationCode = &code
	loc.StationProximityKm = &distance
	loc.RailwayContext = fmt.Sprintf("Nearest station: %s (%s). Distance: %.2f km. Context: %s.",
		name, code, match.DistanceKm, proximitySegment(match.DistanceKm))
	return loc, nil, nil
}

func (s *LocationService) unresolved(loc *models.Location, cause error) (*models.Location, *models.Warning, error) {
	s.logger.Warn("station lookup failed", zap.Float64("latitude", loc.Latitude), zap.Float64("longitude", loc.Longitude), zap.Error(cause))
	s.metrics.RecordSoftFailure(appErrors.ErrLocationUnresolved.Code)
	loc.RailwayContext = "Station lookup unavailable."
	return loc, &models.Warning{
		Code:    appErrors.ErrLocationUnresolved.Code,
		Message: appErrors.ErrLocationUnresolved.Message,
	}, nil
}

func proximitySegment(km float64) string {
	switch {
	case km < 0.5:
		return "at or very close to station premises"
	case km < 2:
		return "within station approach / platform area"
	case km < 10:
		return "within station vicinity (track segment)"
	default:
		return "en route / general area"
	}
}

func formatKm(km float64) string {
	if km == math.Trunc(km) {
		return fmt.Sprintf("%.0f", km)
	}
	return fmt.Sprintf("%.2f", km)
}
