package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/railmadad/complaint-api/internal/models"
	"github.com/railmadad/complaint-api/internal/repository"
)

// memoryComplaintStore mirrors the complaint repository contract in memory.
type memoryComplaintStore struct {
	mu         sync.Mutex
	complaints map[string]models.Complaint
	events     []models.ComplaintEvent
	createErrs []error
	creates    int
	applyErr   error
}

func newMemoryComplaintStore(seed ...models.Complaint) *memoryComplaintStore {
	s := &memoryComplaintStore{complaints: make(map[string]models.Complaint)}
	for _, c := range seed {
		s.complaints[c.ComplaintID] = c
	}
	return s
}

func (s *memoryComplaintStore) Create(ctx context.Context, c *models.Complaint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if len(s.createErrs) > 0 {
		err := s.createErrs[0]
		s.createErrs = s.createErrs[1:]
		if err != nil {
			return err
		}
	}
	if _, exists := s.complaints[c.ComplaintID]; exists {
		return repository.ErrDuplicate
	}
	s.complaints[c.ComplaintID] = *c
	return nil
}

func (s *memoryComplaintStore) GetByID(ctx context.Context, id string) (*models.Complaint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.complaints[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (s *memoryComplaintStore) ListByOwner(ctx context.Context, ownerID string) ([]models.Complaint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Complaint
	for _, c := range s.complaints {
		if c.OwnerUserID == ownerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryComplaintStore) List(ctx context.Context, f models.ComplaintFilter) ([]models.Complaint, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Complaint
	for _, c := range s.complaints {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.IssueCategory != "" && c.IssueCategory != f.IssueCategory {
			continue
		}
		if f.Station != "" {
			if c.Location == nil {
				continue
			}
			name := ""
			if c.Location.NearestStation != nil {
				name = *c.Location.NearestStation
			}
			needle := strings.ToLower(f.Station)
			if !strings.Contains(strings.ToLower(name), needle) && !strings.Contains(strings.ToLower(c.Location.RailwayContext), needle) {
				continue
			}
		}
		if f.TrainNumber != "" {
			if c.TrainDetails == nil || c.TrainDetails.TrainNumber == nil || !strings.Contains(*c.TrainDetails.TrainNumber, f.TrainNumber) {
				continue
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, len(out), nil
}

func (s *memoryComplaintStore) MapPoints(ctx context.Context, limit int) ([]models.MapPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.MapPoint
	for _, c := range s.complaints {
		if c.Location == nil {
			continue
		}
		out = append(out, models.MapPoint{
			ComplaintID:    c.ComplaintID,
			Latitude:       c.Location.Latitude,
			Longitude:      c.Location.Longitude,
			NearestStation: c.Location.NearestStation,
			Status:         c.Status,
			Priority:       c.Priority,
			IssueCategory:  c.IssueCategory,
		})
	}
	return out, nil
}

func (s *memoryComplaintStore) Insights(ctx context.Context) (*models.Insights, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := &models.Insights{ByCategory: map[string]int{}, ByStatus: map[string]int{}, ByPriority: map[string]int{}}
	for _, c := range s.complaints {
		out.ByCategory[c.IssueCategory]++
		out.ByStatus[string(c.Status)]++
		out.ByPriority[string(c.Priority)]++
	}
	return out, nil
}

func (s *memoryComplaintStore) ApplyChange(ctx context.Context, change repository.ComplaintChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applyErr != nil {
		return s.applyErr
	}
	c, ok := s.complaints[change.ComplaintID]
	if !ok || c.Version != change.ExpectedVersion {
		return repository.ErrVersionConflict
	}
	switch change.Type {
	case models.ComplaintEventStatusChange:
		c.Status = models.ComplaintStatus(change.NewValue)
	case models.ComplaintEventDepartmentChange:
		c.Department = change.NewValue
	}
	c.Version++
	c.UpdatedAt = change.At
	s.complaints[c.ComplaintID] = c
	s.events = append(s.events, models.ComplaintEvent{
		ID:          uuid.NewString(),
		ComplaintID: change.ComplaintID,
		ActorID:     change.ActorID,
		Type:        change.Type,
		OldValue:    change.OldValue,
		NewValue:    change.NewValue,
		CreatedAt:   change.At,
	})
	return nil
}

func (s *memoryComplaintStore) ListEvents(ctx context.Context, complaintID string) ([]models.ComplaintEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ComplaintEvent
	for _, e := range s.events {
		if e.ComplaintID == complaintID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memoryComplaintStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.complaints)
}

func adminActor() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func riderActor(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleRider}
}
