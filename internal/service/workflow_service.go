package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/railmadad/complaint-api/internal/models"
	"github.com/railmadad/complaint-api/internal/repository"
	appErrors "github.com/railmadad/complaint-api/pkg/errors"
)

type workflowStore interface {
	GetByID(ctx context.Context, id string) (*models.Complaint, error)
	ApplyChange(ctx context.Context, change repository.ComplaintChange) error
	ListEvents(ctx context.Context, complaintID string) ([]models.ComplaintEvent, error)
}

// WorkflowService applies admin status changes and department assignments.
type WorkflowService struct {
	repo    workflowStore
	links   *ImageLinker
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewWorkflowService constructs a WorkflowService.
func NewWorkflowService(repo workflowStore, links *ImageLinker, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{
		repo:    repo,
		links:   links,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetStatus moves a complaint to a new workflow state. Setting the current
// status is a no-op.
func (s *WorkflowService) SetStatus(ctx context.Context, actor *models.JWTClaims, complaintID string, status models.ComplaintStatus) (*models.Complaint, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	status = models.ComplaintStatus(strings.ToLower(strings.TrimSpace(string(status))))
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be one of pending, in_progress, resolved")
	}

	complaint, err := s.load(ctx, complaintID)
	if err != nil {
		return nil, err
	}
	if complaint.Status == status {
		s.links.Decorate(complaint)
		return complaint, nil
	}
	if !models.CanTransition(complaint.Status, status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move complaint from %s to %s", complaint.Status, status))
	}

	from := complaint.Status
	if err := s.apply(ctx, actor, complaint, models.ComplaintEventStatusChange, string(from), string(status)); err != nil {
		return nil, err
	}
	complaint.Status = status
	s.metrics.RecordTransition(string(from), string(status))
	s.logger.Info("complaint status changed",
		zap.String("complaint_id", complaint.ComplaintID),
		zap.String("from", string(from)),
		zap.String("to", string(status)),
		zap.String("actor_id", actor.UserID),
	)
	s.links.Decorate(complaint)
	return complaint, nil
}

// Assign routes a complaint to a department. Assigning the current
// department is a no-op.
func (s *WorkflowService) Assign(ctx context.Context, actor *models.JWTClaims, complaintID, department string) (*models.Complaint, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	department = strings.TrimSpace(department)
	if department == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "department is required")
	}
	if len(department) > 255 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "department is too long")
	}

	complaint, err := s.load(ctx, complaintID)
	if err != nil {
		return nil, err
	}
	if complaint.Department == department {
		s.links.Decorate(complaint)
		return complaint, nil
	}

	previous := complaint.Department
	if err := s.apply(ctx, actor, complaint, models.ComplaintEventDepartmentChange, previous, department); err != nil {
		return nil, err
	}
	complaint.Department = department
	s.logger.Info("complaint assigned",
		zap.String("complaint_id", complaint.ComplaintID),
		zap.String("department", department),
		zap.String("actor_id", actor.UserID),
	)
	s.links.Decorate(complaint)
	return complaint, nil
}

// History lists the accepted workflow changes of a complaint, oldest first.
func (s *WorkflowService) History(ctx context.Context, actor *models.JWTClaims, complaintID string) ([]models.ComplaintEvent, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, complaintID); err != nil {
		return nil, err
	}
	events, err := s.repo.ListEvents(ctx, complaintID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint history")
	}
	if events == nil {
		events = []models.ComplaintEvent{}
	}
	return events, nil
}

func (s *WorkflowService) load(ctx context.Context, complaintID string) (*models.Complaint, error) {
	complaint, err := s.repo.GetByID(ctx, strings.TrimSpace(complaintID))
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint")
	}
	return complaint, nil
}

func (s *WorkflowService) apply(ctx context.Context, actor *models.JWTClaims, complaint *models.Complaint, kind models.ComplaintEventType, oldValue, newValue string) error {
	at := s.now()
	err := s.repo.ApplyChange(ctx, repository.ComplaintChange{
		ComplaintID:     complaint.ComplaintID,
		ExpectedVersion: complaint.Version,
		Type:            kind,
		OldValue:        oldValue,
		NewValue:        newValue,
		ActorID:         actor.UserID,
		At:              at,
	})
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "complaint was modified concurrently, reload and retry")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update complaint")
	}
	complaint.Version++
	complaint.UpdatedAt = at
	s.cache.Invalidate(ctx, InsightsCacheKey)
	return nil
}

func requireActor(actor *models.JWTClaims) error {
	if actor == nil || actor.UserID == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	return nil
}

func requireAdmin(actor *models.JWTClaims) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "admin access required")
	}
	return nil
}
