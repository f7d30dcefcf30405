package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/railmadad/complaint-api/internal/models"
	"github.com/railmadad/complaint-api/internal/ocr"
	appErrors "github.com/railmadad/complaint-api/pkg/errors"
)

type ticketTextReader interface {
	ReadText(ctx context.Context, data []byte, mimeType string) (string, error)
}

var ticketMIMETypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".pdf":  "application/pdf",
}

// TicketConfig bounds ticket uploads and OCR calls.
type TicketConfig struct {
	MaxFileSizeBytes int64
	Timeout          time.Duration
}

// TicketService extracts journey details from ticket photos and PDFs.
type TicketService struct {
	reader  ticketTextReader
	config  TicketConfig
	metrics *MetricsService
	logger  *zap.Logger
}

// NewTicketService constructs a TicketService. A nil reader makes every
// extraction fail softly.
func NewTicketService(reader ticketTextReader, config TicketConfig, metrics *MetricsService, logger *zap.Logger) *TicketService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxFileSizeBytes <= 0 {
		config.MaxFileSizeBytes = 10 * 1024 * 1024
	}
	if config.Timeout <= 0 {
		config.Timeout = 20 * time.Second
	}
	return &TicketService{reader: reader, config: config, metrics: metrics, logger: logger}
}

// ValidateTicketFile checks the ticket's extension and size and returns its MIME type.
func (s *TicketService) ValidateTicketFile(filename string, size int64) (string, error) {
	mimeType, ok := ticketMIMETypes[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, "allowed ticket formats: png, jpg, jpeg, pdf")
	}
	if size <= 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "ticket file is empty")
	}
	if size > s.config.MaxFileSizeBytes {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("ticket file exceeds %d bytes", s.config.MaxFileSizeBytes))
	}
	return mimeType, nil
}

// Extract runs OCR over the ticket and parses the recognised text.
func (s *TicketService) Extract(ctx context.Context, filename string, data []byte) (*models.TrainDetails, error) {
	mimeType, err := s.ValidateTicketFile(filename, int64(len(data)))
	if err != nil {
		return nil, err
	}
	if s.reader == nil {
		return nil, appErrors.Clone(appErrors.ErrExtractionFailed, "ticket OCR is not configured")
	}

	readCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()
	start := time.Now()
	text, err := s.reader.ReadText(readCtx, data, mimeType)
	s.metrics.ObserveDependency(DependencyOCR, err, time.Since(start))
	if err != nil {
		s.logger.Warn("ticket OCR failed", zap.String("filename", filename), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrExtractionFailed.Code, appErrors.ErrExtractionFailed.Status, "ticket OCR failed")
	}
	if strings.TrimSpace(text) == "" {
		return nil, appErrors.Clone(appErrors.ErrExtractionFailed, "no text recognised on ticket")
	}

	details := ocr.ParseTrainDetails(text)
	if details.Empty() {
		return nil, appErrors.Clone(appErrors.ErrExtractionFailed, "no train details found on ticket")
	}
	return &details, nil
}
