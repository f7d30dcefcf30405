package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/railmadad/complaint-api/internal/models"
	appErrors "github.com/railmadad/complaint-api/pkg/errors"
)

// InsightsCacheKey caches the aggregate complaint counts.
const InsightsCacheKey = "insights:all"

type complaintReader interface {
	GetByID(ctx context.Context, id string) (*models.Complaint, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Complaint, error)
	List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, int, error)
	MapPoints(ctx context.Context, limit int) ([]models.MapPoint, error)
	Insights(ctx context.Context) (*models.Insights, error)
}

// QueryService serves read-only complaint views.
type QueryService struct {
	repo        complaintReader
	links       *ImageLinker
	cache       *CacheService
	insightsTTL time.Duration
	logger      *zap.Logger
}

// NewQueryService constructs a QueryService.
func NewQueryService(repo complaintReader, links *ImageLinker, cache *CacheService, insightsTTL time.Duration, logger *zap.Logger) *QueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{repo: repo, links: links, cache: cache, insightsTTL: insightsTTL, logger: logger}
}

// ListOwn returns the actor's complaints, newest first.
func (s *QueryService) ListOwn(ctx context.Context, actor *models.JWTClaims) ([]models.Complaint, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	list, err := s.repo.ListByOwner(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list complaints")
	}
	if list == nil {
		list = []models.Complaint{}
	}
	s.links.DecorateAll(list)
	return list, nil
}

// ListAdmin returns complaints matching every supplied filter.
func (s *QueryService) ListAdmin(ctx context.Context, actor *models.JWTClaims, filter models.ComplaintFilter) ([]models.Complaint, int, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, 0, err
	}
	filter, err := normalizeFilter(filter)
	if err != nil {
		return nil, 0, err
	}
	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list complaints")
	}
	if list == nil {
		list = []models.Complaint{}
	}
	s.links.DecorateAll(list)
	return list, total, nil
}

// MapPoints returns the positions of located complaints.
func (s *QueryService) MapPoints(ctx context.Context, actor *models.JWTClaims, limit int) ([]models.MapPoint, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "limit must not be negative")
	}
	points, err := s.repo.MapPoints(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load map points")
	}
	if points == nil {
		points = []models.MapPoint{}
	}
	return points, nil
}

// Insights returns complaint counts by category, status and priority. The
// boolean reports whether the result came from cache.
func (s *QueryService) Insights(ctx context.Context, actor *models.JWTClaims) (*models.Insights, bool, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, false, err
	}
	var cached models.Insights
	if s.cache.Get(ctx, InsightsCacheKey, &cached) {
		return completeInsights(&cached), true, nil
	}

	insights, err := s.repo.Insights(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute insights")
	}
	insights = completeInsights(insights)
	s.cache.Set(ctx, InsightsCacheKey, insights, s.insightsTTL)
	return insights, false, nil
}

// Get returns one complaint to its owner or to an admin.
func (s *QueryService) Get(ctx context.Context, actor *models.JWTClaims, complaintID string) (*models.Complaint, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	complaint, err := s.repo.GetByID(ctx, strings.TrimSpace(complaintID))
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint")
	}
	if complaint.OwnerUserID != actor.UserID && !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "complaint belongs to another user")
	}
	s.links.Decorate(complaint)
	return complaint, nil
}

func normalizeFilter(filter models.ComplaintFilter) (models.ComplaintFilter, error) {
	filter.Station = strings.TrimSpace(filter.Station)
	filter.TrainNumber = strings.TrimSpace(filter.TrainNumber)
	if raw := strings.TrimSpace(filter.IssueCategory); raw != "" {
		category, ok := models.NormalizeCategory(raw)
		if !ok {
			return filter, appErrors.Clone(appErrors.ErrValidation, "unknown issue_type")
		}
		filter.IssueCategory = category
	}
	if filter.Status != "" {
		filter.Status = models.ComplaintStatus(strings.ToLower(strings.TrimSpace(string(filter.Status))))
		if !filter.Status.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "status must be one of pending, in_progress, resolved")
		}
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return filter, appErrors.Clone(appErrors.ErrValidation, "limit and offset must not be negative")
	}
	return filter, nil
}

// completeInsights reports every known bucket, including empty ones.
func completeInsights(in *models.Insights) *models.Insights {
	out := &models.Insights{
		ByCategory: make(map[string]int, len(models.IssueCategories)),
		ByStatus:   make(map[string]int, len(models.ComplaintStatuses)),
		ByPriority: make(map[string]int, len(models.Priorities)),
	}
	for _, c := range models.IssueCategories {
		out.ByCategory[c] = 0
	}
	for _, st := range models.ComplaintStatuses {
		out.ByStatus[string(st)] = 0
	}
	for _, p := range models.Priorities {
		out.ByPriority[string(p)] = 0
	}
	if in == nil {
		return out
	}
	for k, v := range in.ByCategory {
		out.ByCategory[k] += v
	}
	for k, v := range in.ByStatus {
		out.ByStatus[k] += v
	}
	for k, v := range in.ByPriority {
		out.ByPriority[k] += v
	}
	return out
}
