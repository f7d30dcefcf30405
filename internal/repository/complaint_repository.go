package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/railmadad/complaint-api/internal/models"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
	defaultMapLimit  = 500
	maxMapLimit      = 1000
)

const complaintSelect = `SELECT c.complaint_id, c.owner_user_id, c.description, c.issue_category, c.issue_details,
       c.priority, c.department, c.status, c.ai_confidence, c.image_filename, c.version, c.created_at, c.updated_at,
       l.latitude AS loc_latitude, l.longitude AS loc_longitude, l.accuracy_m AS loc_accuracy_m,
       l.nearest_station AS loc_nearest_station, l.station_code AS loc_station_code,
       l.station_proximity_km AS loc_station_proximity_km, l.railway_context AS loc_railway_context,
       l.captured_at AS loc_captured_at,
       t.train_number AS td_train_number, t.train_name AS td_train_name, t.coach_number AS td_coach_number,
       t.seat_number AS td_seat_number, t.boarding_station AS td_boarding_station,
       t.destination_station AS td_destination_station, t.source AS td_source, t.raw_ocr_text AS td_raw_ocr_text
FROM complaints c
LEFT JOIN complaint_locations l ON l.complaint_id = c.complaint_id
LEFT JOIN complaint_train_details t ON t.complaint_id = c.complaint_id`

// complaintRow is the flattened join of a complaint with its optional sub-records.
type complaintRow struct {
	ComplaintID   string    `db:"complaint_id"`
	OwnerUserID   string    `db:"owner_user_id"`
	Description   string    `db:"description"`
	IssueCategory string    `db:"issue_category"`
	IssueDetails  string    `db:"issue_details"`
	Priority      string    `db:"priority"`
	Department    string    `db:"department"`
	Status        string    `db:"status"`
	AIConfidence  *float64  `db:"ai_confidence"`
	ImageFilename *string   `db:"image_filename"`
	Version       int       `db:"version"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`

	LocLatitude          *float64   `db:"loc_latitude"`
	LocLongitude         *float64   `db:"loc_longitude"`
	LocAccuracyM         *float64   `db:"loc_accuracy_m"`
	LocNearestStation    *string    `db:"loc_nearest_station"`
	LocStationCode       *string    `db:"loc_station_code"`
	LocProximityKm       *float64   `db:"loc_station_proximity_km"`
	LocRailwayContext    *string    `db:"loc_railway_context"`
	LocCapturedAt        *time.Time `db:"loc_captured_at"`
	TDTrainNumber        *string    `db:"td_train_number"`
	TDTrainName          *string    `db:"td_train_name"`
	TDCoachNumber        *string    `db:"td_coach_number"`
	TDSeatNumber         *string    `db:"td_seat_number"`
	TDBoardingStation    *string    `db:"td_boarding_station"`
	TDDestinationStation *string    `db:"td_destination_station"`
	TDSource             *string    `db:"td_source"`
	TDRawOCRText         *string    `db:"td_raw_ocr_text"`
}

func (r complaintRow) toModel() models.Complaint {
	c := models.Complaint{
		ComplaintID:   r.ComplaintID,
		OwnerUserID:   r.OwnerUserID,
		Description:   r.Description,
		IssueCategory: r.IssueCategory,
		IssueDetails:  r.IssueDetails,
		Priority:      models.Priority(r.Priority),
		Department:    r.Department,
		Status:        models.ComplaintStatus(r.Status),
		AIConfidence:  r.AIConfidence,
		Version:       r.Version,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.ImageFilename != nil {
		c.ImageFilename = *r.ImageFilename
	}
	if r.LocLatitude != nil && r.LocLongitude != nil {
		loc := &models.Location{
			Latitude:           *r.LocLatitude,
			Longitude:          *r.LocLongitude,
			AccuracyM:          r.LocAccuracyM,
			NearestStation:     r.LocNearestStation,
			StationCode:        r.LocStationCode,
			StationProximityKm: r.LocProximityKm,
		}
		if r.LocRailwayContext != nil {
			loc.RailwayContext = *r.LocRailwayContext
		}
		if r.LocCapturedAt != nil {
			loc.CapturedAt = *r.LocCapturedAt
		}
		c.Location = loc
	}
	if r.TDSource != nil {
		c.TrainDetails = &models.TrainDetails{
			TrainNumber:        r.TDTrainNumber,
			TrainName:          r.TDTrainName,
			CoachNumber:        r.TDCoachNumber,
			SeatNumber:         r.TDSeatNumber,
			BoardingStation:    r.TDBoardingStation,
			DestinationStation: r.TDDestinationStation,
			Source:             *r.TDSource,
			RawOCRText:         r.TDRawOCRText,
		}
	}
	return c
}

// ComplaintRepository persists complaints, their sub-records and workflow history.
type ComplaintRepository struct {
	db *sqlx.DB
}

// NewComplaintRepository constructs the repository.
func NewComplaintRepository(db *sqlx.DB) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

// Create inserts the complaint with its optional location and train details in
// one transaction. ErrDuplicate is returned when the complaint ID is taken.
func (r *ComplaintRepository) Create(ctx context.Context, complaint *models.Complaint) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create complaint: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var image *string
	if complaint.ImageFilename != "" {
		image = &complaint.ImageFilename
	}
	const insertComplaint = `INSERT INTO complaints
	(complaint_id, owner_user_id, description, issue_category, issue_details, priority, department, status, ai_confidence, image_filename, version, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	if _, err = tx.ExecContext(ctx, insertComplaint,
		complaint.ComplaintID, complaint.OwnerUserID, complaint.Description, complaint.IssueCategory, complaint.IssueDetails,
		complaint.Priority, complaint.Department, complaint.Status, complaint.AIConfidence, image, complaint.Version,
		complaint.CreatedAt, complaint.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert complaint: %w", err)
	}

	if loc := complaint.Location; loc != nil {
		const insertLocation = `INSERT INTO complaint_locations
		(complaint_id, latitude, longitude, accuracy_m, nearest_station, station_code, station_proximity_km, railway_context, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		if _, err = tx.ExecContext(ctx, insertLocation,
			complaint.ComplaintID, loc.Latitude, loc.Longitude, loc.AccuracyM, loc.NearestStation, loc.StationCode,
			loc.StationProximityKm, loc.RailwayContext, loc.CapturedAt,
		); err != nil {
			return fmt.Errorf("insert complaint location: %w", err)
		}
	}

	if td := complaint.TrainDetails; td != nil {
		const insertTrain = `INSERT INTO complaint_train_details
		(complaint_id, train_number, train_name, coach_number, seat_number, boarding_station, destination_station, source, raw_ocr_text)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		if _, err = tx.ExecContext(ctx, insertTrain,
			complaint.ComplaintID, td.TrainNumber, td.TrainName, td.CoachNumber, td.SeatNumber, td.BoardingStation,
			td.DestinationStation, td.Source, td.RawOCRText,
		); err != nil {
			return fmt.Errorf("insert complaint train details: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create complaint: %w", err)
	}
	return nil
}

// GetByID fetches a complaint by its public identifier.
func (r *ComplaintRepository) GetByID(ctx context.Context, id string) (*models.Complaint, error) {
	var row complaintRow
	if err := r.db.GetContext(ctx, &row, complaintSelect+` WHERE c.complaint_id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get complaint: %w", err)
	}
	complaint := row.toModel()
	return &complaint, nil
}

// ListByOwner returns the owner's complaints, newest first.
func (r *ComplaintRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Complaint, error) {
	var rows []complaintRow
	query := complaintSelect + ` WHERE c.owner_user_id = $1 ORDER BY c.created_at DESC`
	if err := r.db.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, fmt.Errorf("list complaints by owner: %w", err)
	}
	return toModels(rows), nil
}

// List returns complaints matching every provided filter field, newest first,
// together with the total number of matches.
func (r *ComplaintRepository) List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, int, error) {
	where, args := buildComplaintFilter(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	listQuery := fmt.Sprintf("%s%s ORDER BY c.created_at DESC LIMIT %d OFFSET %d", complaintSelect, where, limit, offset)
	var rows []complaintRow
	if err := r.db.SelectContext(ctx, &rows, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list complaints: %w", err)
	}

	countQuery := `SELECT COUNT(*) FROM complaints c LEFT JOIN complaint_locations l ON l.complaint_id = c.complaint_id
LEFT JOIN complaint_train_details t ON t.complaint_id = c.complaint_id` + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count complaints: %w", err)
	}
	return toModels(rows), total, nil
}

func buildComplaintFilter(filter models.ComplaintFilter) (string, []interface{}) {
	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)

	if station := strings.TrimSpace(filter.Station); station != "" {
		args = append(args, "%"+escapeLike(station)+"%")
		conditions = append(conditions, fmt.Sprintf("(l.nearest_station ILIKE $%d OR l.railway_context ILIKE $%d)", len(args), len(args)))
	}
	if train := strings.TrimSpace(filter.TrainNumber); train != "" {
		args = append(args, train)
		exact := len(args)
		args = append(args, "%"+escapeLike(train)+"%")
		conditions = append(conditions, fmt.Sprintf("(t.train_number = $%d OR t.train_number ILIKE $%d)", exact, len(args)))
	}
	if filter.IssueCategory != "" {
		args = append(args, filter.IssueCategory)
		conditions = append(conditions, fmt.Sprintf("c.issue_category = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("c.status = $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// MapPoints projects located complaints for map rendering, newest first.
func (r *ComplaintRepository) MapPoints(ctx context.Context, limit int) ([]models.MapPoint, error) {
	if limit <= 0 {
		limit = defaultMapLimit
	}
	if limit > maxMapLimit {
		limit = maxMapLimit
	}
	const query = `SELECT c.complaint_id, l.latitude, l.longitude, l.nearest_station, c.status, c.priority, c.issue_category
FROM complaints c
JOIN complaint_locations l ON l.complaint_id = c.complaint_id
ORDER BY c.created_at DESC
LIMIT $1`
	points := make([]models.MapPoint, 0)
	if err := r.db.SelectContext(ctx, &points, query, limit); err != nil {
		return nil, fmt.Errorf("list map points: %w", err)
	}
	return points, nil
}

type insightRow struct {
	IssueCategory string `db:"issue_category"`
	Status        string `db:"status"`
	Priority      string `db:"priority"`
	Total         int    `db:"total"`
}

// Insights counts complaints by category, status and priority.
func (r *ComplaintRepository) Insights(ctx context.Context) (*models.Insights, error) {
	const query = `SELECT issue_category, status, priority, COUNT(*) AS total
FROM complaints
GROUP BY issue_category, status, priority`
	var rows []insightRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("aggregate complaints: %w", err)
	}
	insights := &models.Insights{
		ByCategory: make(map[string]int),
		ByStatus:   make(map[string]int),
		ByPriority: make(map[string]int),
	}
	for _, row := range rows {
		insights.ByCategory[row.IssueCategory] += row.Total
		insights.ByStatus[row.Status] += row.Total
		insights.ByPriority[row.Priority] += row.Total
	}
	return insights, nil
}

// ComplaintChange describes one optimistic workflow mutation.
type ComplaintChange struct {
	ComplaintID     string
	ExpectedVersion int
	Type            models.ComplaintEventType
	OldValue        string
	NewValue        string
	ActorID         string
	At              time.Time
}

// ApplyChange updates the status or department of a complaint when its version
// still matches, bumps the version and records the event in the same
// transaction. ErrVersionConflict is returned when no row matched.
func (r *ComplaintRepository) ApplyChange(ctx context.Context, change ComplaintChange) (err error) {
	var column string
	switch change.Type {
	case models.ComplaintEventStatusChange:
		column = "status"
	case models.ComplaintEventDepartmentChange:
		column = "department"
	default:
		return fmt.Errorf("unsupported complaint change %q", change.Type)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin complaint change: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	update := fmt.Sprintf(`UPDATE complaints SET %s = $1, version = version + 1, updated_at = $2 WHERE complaint_id = $3 AND version = $4`, column)
	result, err := tx.ExecContext(ctx, update, change.NewValue, change.At, change.ComplaintID, change.ExpectedVersion)
	if err != nil {
		return fmt.Errorf("update complaint %s: %w", column, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check complaint update rows: %w", err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}

	event := models.ComplaintEvent{
		ID:          uuid.NewString(),
		ComplaintID: change.ComplaintID,
		ActorID:     change.ActorID,
		Type:        change.Type,
		OldValue:    change.OldValue,
		NewValue:    change.NewValue,
		CreatedAt:   change.At,
	}
	const insertEvent = `INSERT INTO complaint_events (id, complaint_id, actor_id, change_type, old_value, new_value, created_at)
	VALUES (:id, :complaint_id, :actor_id, :change_type, :old_value, :new_value, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insertEvent, event); err != nil {
		return fmt.Errorf("insert complaint event: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit complaint change: %w", err)
	}
	return nil
}

// ListEvents returns the workflow history of a complaint, oldest first.
func (r *ComplaintRepository) ListEvents(ctx context.Context, complaintID string) ([]models.ComplaintEvent, error) {
	const query = `SELECT id, complaint_id, actor_id, change_type, old_value, new_value, created_at
FROM complaint_events WHERE complaint_id = $1 ORDER BY created_at ASC`
	events := make([]models.ComplaintEvent, 0)
	if err := r.db.SelectContext(ctx, &events, query, complaintID); err != nil {
		return nil, fmt.Errorf("list complaint events: %w", err)
	}
	return events, nil
}

func toModels(rows []complaintRow) []models.Complaint {
	complaints := make([]models.Complaint, 0, len(rows))
	for _, row := range rows {
		complaints = append(complaints, row.toModel())
	}
	return complaints
}
