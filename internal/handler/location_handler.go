package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/railmadad/complaint-api/internal/models"
	appErrors "github.com/railmadad/complaint-api/pkg/errors"
	"github.com/railmadad/complaint-api/pkg/response"
)

type locationService interface {
	Resolve(ctx context.Context, req models.LocationRequest) (*models.Location, *models.Warning, error)
}

// LocationHandler exposes station lookup for raw coordinates.
type LocationHandler struct {
	service locationService
}

// NewLocationHandler constructs the handler.
func NewLocationHandler(svc locationService) *LocationHandler {
	return &LocationHandler{service: svc}
}

// locationPayload accepts both long and short coordinate keys.
type locationPayload struct {
	Latitude  *float64 `json:"latitude"`
	Lat       *float64 `json:"lat"`
	Longitude *float64 `json:"longitude"`
	Lon       *float64 `json:"lon"`
	Accuracy  *float64 `json:"accuracy"`
	AccuracyM *float64 `json:"accuracy_m"`
}

func (p locationPayload) request() models.LocationRequest {
	req := models.LocationRequest{Latitude: p.Latitude, Longitude: p.Longitude, AccuracyM: p.AccuracyM}
	if req.Latitude == nil {
		req.Latitude = p.Lat
	}
	if req.Longitude == nil {
		req.Longitude = p.Lon
	}
	if req.AccuracyM == nil {
		req.AccuracyM = p.Accuracy
	}
	return req
}

// Resolve godoc
// @Summary Resolve coordinates to railway context
// @Tags Location
// @Accept json
// @Produce json
// @Param payload body models.LocationRequest true "Coordinates"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /location/resolve [post]
func (h *LocationHandler) Resolve(c *gin.Context) {
	var payload locationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid location payload"))
		return
	}

	loc, warning, err := h.service.Resolve(c.Request.Context(), payload.request())
	if err != nil {
		response.Error(c, err)
		return
	}

	var warnings []models.Warning
	if warning != nil {
		warnings = append(warnings, *warning)
	}
	response.WithWarnings(c, http.StatusOK, gin.H{"location": loc}, warnings)
}
