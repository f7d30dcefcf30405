package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/railmadad/complaint-api/internal/models"
	"github.com/railmadad/complaint-api/pkg/export"
	appErrors "github.com/railmadad/complaint-api/pkg/errors"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

const (
	exportPageSize = 500
	exportMaxRows  = 5000
)

var exportHeaders = []string{"Complaint ID", "Created", "Status", "Priority", "Category", "Department", "Station", "Train", "Description"}

type complaintLister interface {
	List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, int, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportFile is a rendered export ready to be streamed to the client.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

// ExportService renders filtered complaint listings as CSV or PDF.
type ExportService struct {
	repo      complaintLister
	renderers map[string]datasetRenderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the
// default CSV and PDF exporters.
func NewExportService(repo complaintLister, csv, pdf datasetRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		repo:      repo,
		renderers: map[string]datasetRenderer{ExportFormatCSV: csv, ExportFormatPDF: pdf},
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Export renders every complaint matching the filter, up to exportMaxRows.
func (s *ExportService) Export(ctx context.Context, actor *models.JWTClaims, filter models.ComplaintFilter, format string) (*ExportFile, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	filter, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}

	rows, err := s.collect(ctx, filter)
	if err != nil {
		return nil, err
	}

	generatedAt := s.now()
	dataset := export.Dataset{
		Title:   fmt.Sprintf("Railway complaints (%s)", generatedAt.Format("2006-01-02 15:04 MST")),
		Headers: exportHeaders,
		Rows:    make([]map[string]string, 0, len(rows)),
	}
	for _, c := range rows {
		dataset.Rows = append(dataset.Rows, complaintRecord(c))
	}

	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Info("complaints exported", zap.String("format", format), zap.Int("rows", len(rows)), zap.String("actor_id", actor.UserID))

	return &ExportFile{
		Filename:    fmt.Sprintf("complaints_%s.%s", generatedAt.Format("20060102_150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Data:        payload,
		Rows:        len(rows),
	}, nil
}

func (s *ExportService) collect(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, error) {
	limit := exportMaxRows
	if filter.Limit > 0 && filter.Limit < limit {
		limit = filter.Limit
	}
	var out []models.Complaint
	offset := filter.Offset
	for len(out) < limit {
		page := filter
		page.Offset = offset
		page.Limit = exportPageSize
		if remaining := limit - len(out); remaining < page.Limit {
			page.Limit = remaining
		}
		list, total, err := s.repo.List(ctx, page)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaints for export")
		}
		out = append(out, list...)
		offset += len(list)
		if len(list) < page.Limit || offset >= total {
			break
		}
	}
	return out, nil
}

func complaintRecord(c models.Complaint) map[string]string {
	station := ""
	if c.Location != nil && c.Location.NearestStation != nil {
		station = *c.Location.NearestStation
	}
	train := ""
	if c.TrainDetails != nil && c.TrainDetails.TrainNumber != nil {
		train = *c.TrainDetails.TrainNumber
		if c.TrainDetails.CoachNumber != nil {
			train += " / " + *c.TrainDetails.CoachNumber
		}
	}
	values := []string{
		c.ComplaintID,
		c.CreatedAt.UTC().Format(time.RFC3339),
		string(c.Status),
		string(c.Priority),
		c.IssueCategory,
		c.Department,
		station,
		train,
		c.Description,
	}
	record := make(map[string]string, len(exportHeaders))
	for i, header := range exportHeaders {
		record[header] = values[i]
	}
	return record
}
