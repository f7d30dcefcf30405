package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/railmadad/complaint-api/internal/mlclient"
	"github.com/railmadad/complaint-api/internal/models"
	appErrors "github.com/railmadad/complaint-api/pkg/errors"
)

// PredictionService exposes the image model directly, returning every class
// probability next to the department and priority the label routes to.
type PredictionService struct {
	model        imageModel
	timeout      time.Duration
	maxBytes     int64
	allowedMIMEs []string
	metrics      *MetricsService
	logger       *zap.Logger
}

// NewPredictionService constructs a PredictionService. A nil model makes
// every call report the model as not loaded.
func NewPredictionService(model imageModel, timeout time.Duration, config ComplaintConfig, metrics *MetricsService, logger *zap.Logger) *PredictionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if config.MaxImageBytes <= 0 {
		config.MaxImageBytes = 10 * 1024 * 1024
	}
	if len(config.AllowedImageMIMEs) == 0 {
		config.AllowedImageMIMEs = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
	}
	return &PredictionService{
		model:        model,
		timeout:      timeout,
		maxBytes:     config.MaxImageBytes,
		allowedMIMEs: config.AllowedImageMIMEs,
		metrics:      metrics,
		logger:       logger,
	}
}

// Predict runs the image model. A model service without a loaded model yields
// an unsuccessful prediction rather than an error.
func (s *PredictionService) Predict(ctx context.Context, filename string, image []byte) (*models.ImagePrediction, error) {
	mimeType, err := s.sniff(image)
	if err != nil {
		return nil, err
	}
	if s.model == nil {
		return notLoaded(), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	pred, err := s.model.Predict(callCtx, image, filename, mimeType)
	s.metrics.ObserveDependency(DependencyImageModel, err, time.Since(start))
	if errors.Is(err, mlclient.ErrModelUnavailable) {
		return notLoaded(), nil
	}
	if err != nil {
		s.logger.Warn("image model prediction failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrClassificationFailed.Code, appErrors.ErrClassificationFailed.Status, "image model prediction failed")
	}

	policy := policyForLabel(pred.Label)
	probs := pred.AllProbs
	if probs == nil {
		probs = map[string]float64{}
	}
	return &models.ImagePrediction{
		Success:             true,
		Label:               pred.Label,
		Confidence:          pred.Confidence,
		AllProbs:            probs,
		SuggestedCategory:   policy.Category,
		SuggestedDepartment: policy.Department,
		SuggestedPriority:   policy.Priority,
	}, nil
}

func (s *PredictionService) sniff(image []byte) (string, error) {
	if len(image) == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "image file (image or file) is required")
	}
	if int64(len(image)) > s.maxBytes {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("image exceeds %d bytes", s.maxBytes))
	}
	mimeType := http.DetectContentType(image)
	for _, allowed := range s.allowedMIMEs {
		if mimeType == allowed {
			return mimeType, nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrValidation, "only jpeg, png, gif or webp images are allowed")
}

func notLoaded() *models.ImagePrediction {
	return &models.ImagePrediction{
		Message:  "image model not loaded",
		AllProbs: map[string]float64{},
	}
}
