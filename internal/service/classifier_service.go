package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/railmadad/complaint-api/internal/models"
	appErrors "github.com/railmadad/complaint-api/pkg/errors"
)

type issueClassifier interface {
	Classify(ctx context.Context, image []byte, mimeType, text string) (*models.Classification, error)
}

// ClassifierService runs one classification call per submission and
// normalises the verdict onto the closed category and priority sets.
type ClassifierService struct {
	backend issueClassifier
	timeout time.Duration
	metrics *MetricsService
	logger  *zap.Logger
}

// NewClassifierService constructs a ClassifierService.
func NewClassifierService(backend issueClassifier, timeout time.Duration, metrics *MetricsService, logger *zap.Logger) *ClassifierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ClassifierService{backend: backend, timeout: timeout, metrics: metrics, logger: logger}
}

// Classify analyses the image with optional rider text. Any backend error,
// timeout or unusable verdict is reported as CLASSIFICATION_FAILED.
func (s *ClassifierService) Classify(ctx context.Context, image []byte, mimeType, text string) (*models.Classification, error) {
	if s.backend == nil {
		return nil, s.fail(errors.New("no classifier backend configured"))
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	verdict, err := s.backend.Classify(callCtx, image, mimeType, text)
	s.metrics.ObserveDependency(DependencyClassifier, err, time.Since(start))
	if err != nil {
		return nil, s.fail(err)
	}
	if verdict == nil {
		return nil, s.fail(errors.New("classifier returned no verdict"))
	}
	if _, ok := models.ParsePriority(string(verdict.Priority)); !ok {
		return nil, s.fail(errors.New("classifier returned an unknown priority"))
	}

	return normalizeClassification(*verdict, text), nil
}

func (s *ClassifierService) fail(cause error) error {
	s.metrics.RecordClassificationFailure()
	s.logger.Warn("issue classification failed", zap.Error(cause))
	return appErrors.Wrap(cause, appErrors.ErrClassificationFailed.Code, appErrors.ErrClassificationFailed.Status, appErrors.ErrClassificationFailed.Message)
}

func normalizeClassification(v models.Classification, text string) *models.Classification {
	v.Priority, _ = models.ParsePriority(string(v.Priority))
	v.IssueCategory, _ = models.NormalizeCategory(v.IssueCategory)
	v.Department = strings.TrimSpace(v.Department)
	if v.Department == "" {
		v.Department = DefaultDepartment(v.IssueCategory)
	}
	v.IssueDetails = strings.TrimSpace(v.IssueDetails)
	v.ComplaintDescription = strings.TrimSpace(v.ComplaintDescription)
	if v.ComplaintDescription == "" {
		v.ComplaintDescription = strings.TrimSpace(text)
	}
	if v.ComplaintDescription == "" {
		v.ComplaintDescription = v.IssueDetails
	}
	if v.Confidence != nil {
		c := *v.Confidence
		if c < 0 {
			c = 0
		} else if c > 1 {
			c = 1
		}
		v.Confidence = &c
	}
	return &v
}
