package models

import (
	"strings"
	"time"
)

// ComplaintStatus captures the workflow state of a complaint.
type ComplaintStatus string

const (
	ComplaintStatusPending    ComplaintStatus = "pending"
	ComplaintStatusInProgress ComplaintStatus = "in_progress"
	ComplaintStatusResolved   ComplaintStatus = "resolved"
)

// ComplaintStatuses lists every workflow state in lifecycle order.
var ComplaintStatuses = []ComplaintStatus{ComplaintStatusPending, ComplaintStatusInProgress, ComplaintStatusResolved}

// Valid reports whether the status is a known workflow state.
func (s ComplaintStatus) Valid() bool {
	switch s {
	case ComplaintStatusPending, ComplaintStatusInProgress, ComplaintStatusResolved:
		return true
	}
	return false
}

var statusTransitions = map[ComplaintStatus]map[ComplaintStatus]struct{}{
	ComplaintStatusPending:    {ComplaintStatusInProgress: {}, ComplaintStatusResolved: {}},
	ComplaintStatusInProgress: {ComplaintStatusPending: {}, ComplaintStatusResolved: {}},
	ComplaintStatusResolved:   {ComplaintStatusInProgress: {}},
}

// CanTransition reports whether a complaint may move from one status to another.
// Resolved complaints can only be reopened into in_progress.
func CanTransition(from, to ComplaintStatus) bool {
	next, ok := statusTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// Priority ranks complaint urgency.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

// Priorities lists every priority from most to least urgent.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

// ParsePriority normalises raw input into a Priority.
func ParsePriority(raw string) (Priority, bool) {
	p := Priority(strings.ToUpper(strings.TrimSpace(raw)))
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return p, true
	}
	return "", false
}

// Issue categories recognised by the classifier.
const (
	CategoryOvercrowding  = "Overcrowding & Crowd Management"
	CategoryCleanliness   = "Cleanliness, Sanitation & Hygiene"
	CategoryWater         = "Water & Drinking Facilities"
	CategoryFood          = "Food & Vendor Issues"
	CategoryAmenities     = "Faulty Amenities & Infrastructure"
	CategorySafety        = "Safety & Security Concerns"
	CategoryAccessibility = "Accessibility & Passenger Assistance"
	CategoryInformation   = "Information & Communication Gaps"
	CategoryOther         = "Other / Miscellaneous"
)

// IssueCategories is the closed set of complaint categories.
var IssueCategories = []string{
	CategoryOvercrowding,
	CategoryCleanliness,
	CategoryWater,
	CategoryFood,
	CategoryAmenities,
	CategorySafety,
	CategoryAccessibility,
	CategoryInformation,
	CategoryOther,
}

// NormalizeCategory maps raw classifier output onto the closed category set.
// The boolean is false when the input matched nothing and the catch-all was used.
func NormalizeCategory(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, c := range IssueCategories {
		if strings.EqualFold(c, trimmed) {
			return c, true
		}
	}
	return CategoryOther, false
}

// Departments that complaints are routed to.
const (
	DepartmentEmergency    = "Emergency Services / GRP / RPF"
	DepartmentStation      = "Railway Administration / Station Management"
	DepartmentMaintenance  = "Electrical & Maintenance"
	DepartmentHousekeeping = "Housekeeping & Sanitation"
	DepartmentCatering     = "Catering & Railway Administration"
	DepartmentOperations   = "Operations & Control Room"
	DepartmentGeneral      = "Railway Administration"
)

// Complaint is a single reported railway issue. Location and TrainDetails are
// present only when resolved at submission time.
type Complaint struct {
	ComplaintID   string          `json:"complaintId"`
	OwnerUserID   string          `json:"userId"`
	Description   string          `json:"description"`
	IssueCategory string          `json:"issueCategory"`
	IssueDetails  string          `json:"issueDetails"`
	Priority      Priority        `json:"priority"`
	Department    string          `json:"department"`
	Status        ComplaintStatus `json:"status"`
	AIConfidence  *float64        `json:"aiConfidence,omitempty"`
	ImageFilename string          `json:"imageFilename,omitempty"`
	ImageURL      string          `json:"imageUrl,omitempty"`
	Version       int             `json:"version"`
	Location      *Location       `json:"location,omitempty"`
	TrainDetails  *TrainDetails   `json:"trainDetails,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Location is a resolved capture position with railway context.
type Location struct {
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	AccuracyM          *float64  `json:"accuracyM,omitempty"`
	NearestStation     *string   `json:"nearestStation"`
	StationCode        *string   `json:"stationCode,omitempty"`
	StationProximityKm *float64  `json:"stationProximityKm"`
	RailwayContext     string    `json:"railwayContext"`
	CapturedAt         time.Time `json:"capturedAt"`
}

// TrainDetails source values.
const (
	TrainSourceOCR    = "ocr"
	TrainSourceManual = "manual"
)

// TrainDetails holds journey identifiers. Every field is individually optional.
type TrainDetails struct {
	TrainNumber        *string `json:"trainNumber,omitempty"`
	TrainName          *string `json:"trainName,omitempty"`
	CoachNumber        *string `json:"coachNumber,omitempty"`
	SeatNumber         *string `json:"seatNumber,omitempty"`
	BoardingStation    *string `json:"boardingStation,omitempty"`
	DestinationStation *string `json:"destinationStation,omitempty"`
	Source             string  `json:"source,omitempty"`
	RawOCRText         *string `json:"rawOcrText,omitempty"`
}

// Empty reports whether no journey field is populated.
func (t *TrainDetails) Empty() bool {
	if t == nil {
		return true
	}
	for _, f := range []*string{t.TrainNumber, t.TrainName, t.CoachNumber, t.SeatNumber, t.BoardingStation, t.DestinationStation} {
		if f != nil && strings.TrimSpace(*f) != "" {
			return false
		}
	}
	return true
}

// Classification is the structured verdict of the issue classifier.
type Classification struct {
	IssueCategory        string   `json:"issueCategory"`
	IssueDetails         string   `json:"issueDetails"`
	Priority             Priority `json:"priority"`
	Department           string   `json:"department"`
	ComplaintDescription string   `json:"complaintDescription"`
	Confidence           *float64 `json:"confidence,omitempty"`
}

// ComplaintEventType enumerates history entries.
type ComplaintEventType string

const (
	ComplaintEventStatusChange     ComplaintEventType = "STATUS_CHANGE"
	ComplaintEventDepartmentChange ComplaintEventType = "DEPARTMENT_CHANGE"
)

// ComplaintEvent is an immutable record of an accepted workflow mutation.
type ComplaintEvent struct {
	ID          string             `db:"id" json:"id"`
	ComplaintID string             `db:"complaint_id" json:"complaintId"`
	ActorID     string             `db:"actor_id" json:"actorId"`
	Type        ComplaintEventType `db:"change_type" json:"type"`
	OldValue    string             `db:"old_value" json:"oldValue"`
	NewValue    string             `db:"new_value" json:"newValue"`
	CreatedAt   time.Time          `db:"created_at" json:"createdAt"`
}

// ComplaintFilter constrains admin listing queries. Empty fields impose no constraint.
type ComplaintFilter struct {
	Station       string
	TrainNumber   string
	IssueCategory string
	Status        ComplaintStatus
	Limit         int
	Offset        int
}

// MapPoint is the map projection of a located complaint.
type MapPoint struct {
	ComplaintID    string          `db:"complaint_id" json:"complaintId"`
	Latitude       float64         `db:"latitude" json:"latitude"`
	Longitude      float64         `db:"longitude" json:"longitude"`
	NearestStation *string         `db:"nearest_station" json:"nearestStation"`
	Status         ComplaintStatus `db:"status" json:"status"`
	Priority       Priority        `db:"priority" json:"priority"`
	IssueCategory  string          `db:"issue_category" json:"issueCategory"`
}

// Insights groups complaint counts by dimension.
type Insights struct {
	ByCategory map[string]int `json:"byCategory"`
	ByStatus   map[string]int `json:"byStatus"`
	ByPriority map[string]int `json:"byPriority"`
}

// Warning reports a non-fatal failure alongside a successful result.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ComplaintSubmission is the raw intake form of a new complaint. Location and
// train detail fields arrive as unparsed strings so malformed input can be
// downgraded to warnings.
type ComplaintSubmission struct {
	Image            []byte
	ImageFilename    string
	Text             string
	Latitude         string
	Longitude        string
	AccuracyM        string
	TrainDetailsJSON string
	Ticket           []byte
	TicketFilename   string
}

// ImagePrediction is the raw image model verdict with its routing suggestion.
type ImagePrediction struct {
	Success             bool               `json:"success"`
	Label               string             `json:"issue_category,omitempty"`
	Confidence          float64            `json:"confidence"`
	AllProbs            map[string]float64 `json:"all_probs"`
	SuggestedCategory   string             `json:"suggested_category,omitempty"`
	SuggestedDepartment string             `json:"suggested_department,omitempty"`
	SuggestedPriority   Priority           `json:"suggested_priority,omitempty"`
	Message             string             `json:"message,omitempty"`
}
