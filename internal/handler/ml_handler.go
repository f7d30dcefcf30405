package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/railmadad/complaint-api/internal/models"
	appErrors "github.com/railmadad/complaint-api/pkg/errors"
	"github.com/railmadad/complaint-api/pkg/response"
)

type predictionService interface {
	Predict(ctx context.Context, filename string, image []byte) (*models.ImagePrediction, error)
}

// MLHandler exposes raw image model predictions.
type MLHandler struct {
	service  predictionService
	maxBytes int64
}

// NewMLHandler constructs the handler.
func NewMLHandler(svc predictionService, maxBytes int64) *MLHandler {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &MLHandler{service: svc, maxBytes: maxBytes}
}

// Predict godoc
// @Summary Predict the issue category of a photo
// @Description Returns the model label, confidence, all class probabilities and the suggested department and priority.
// @Tags ML
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "Photo (also accepted as file)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /ml/predict [post]
func (h *MLHandler) Predict(c *gin.Context) {
	limitBody(c, h.maxBytes, 1)
	file, err := readFormFile(c, h.maxBytes, "image", "file")
	if err != nil {
		response.Error(c, err)
		return
	}
	if file == nil || file.Filename == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "image file (image or file) is required"))
		return
	}

	prediction, err := h.service.Predict(c.Request.Context(), file.Filename, file.Data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, prediction, nil)
}
