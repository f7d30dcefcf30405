package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/railmadad/complaint-api/internal/mlclient"
	"github.com/railmadad/complaint-api/internal/models"
)

var categoryDepartments = map[string]string{
	models.CategoryOvercrowding:  models.DepartmentStation,
	models.CategoryCleanliness:   models.DepartmentHousekeeping,
	models.CategoryWater:         models.DepartmentMaintenance,
	models.CategoryFood:          models.DepartmentCatering,
	models.CategoryAmenities:     models.DepartmentMaintenance,
	models.CategorySafety:        models.DepartmentEmergency,
	models.CategoryAccessibility: models.DepartmentStation,
	models.CategoryInformation:   models.DepartmentOperations,
	models.CategoryOther:         models.DepartmentGeneral,
}

// DefaultDepartment returns the department a category is routed to when the
// classifier did not name one.
func DefaultDepartment(category string) string {
	if dept, ok := categoryDepartments[category]; ok {
		return dept
	}
	return models.DepartmentGeneral
}

type labelPolicy struct {
	Category   string
	Priority   models.Priority
	Department string
}

// Routing for labels produced by the image model service.
var modelLabelPolicies = map[string]labelPolicy{
	"crowd":        {Category: models.CategoryOvercrowding, Priority: models.PriorityHigh, Department: models.DepartmentStation},
	"dirty_toilet": {Category: models.CategoryCleanliness, Priority: models.PriorityMedium, Department: models.DepartmentHousekeeping},
	"trash":        {Category: models.CategoryCleanliness, Priority: models.PriorityLow, Department: models.DepartmentHousekeeping},
	"fire_smoke":   {Category: models.CategorySafety, Priority: models.PriorityCritical, Department: models.DepartmentEmergency},
	"food":         {Category: models.CategoryFood, Priority: models.PriorityMedium, Department: models.DepartmentCatering},
}

func policyForLabel(label string) labelPolicy {
	if p, ok := modelLabelPolicies[strings.ToLower(strings.TrimSpace(label))]; ok {
		return p
	}
	return labelPolicy{Category: models.CategoryOther, Priority: models.PriorityMedium, Department: models.DepartmentGeneral}
}

type imageModel interface {
	Predict(ctx context.Context, image []byte, filename, mimeType string) (*mlclient.Prediction, error)
}

// ModelClassifier adapts the image model service to the classifier contract.
type ModelClassifier struct {
	model         imageModel
	minConfidence float64
}

// NewModelClassifier wraps an image model. Predictions below minConfidence are rejected.
func NewModelClassifier(model imageModel, minConfidence float64) *ModelClassifier {
	return &ModelClassifier{model: model, minConfidence: minConfidence}
}

// Classify predicts a label for the image and routes it through the label policy.
func (c *ModelClassifier) Classify(ctx context.Context, image []byte, mimeType, text string) (*models.Classification, error) {
	pred, err := c.model.Predict(ctx, image, "upload"+extensionForMIME(mimeType), mimeType)
	if err != nil {
		return nil, err
	}
	if pred.Confidence < c.minConfidence {
		return nil, fmt.Errorf("model confidence %.2f below threshold %.2f", pred.Confidence, c.minConfidence)
	}

	policy := policyForLabel(pred.Label)
	label := strings.ReplaceAll(pred.Label, "_", " ")
	description := strings.TrimSpace(text)
	if description == "" {
		description = fmt.Sprintf("Issue category: %s", label)
	}
	confidence := pred.Confidence
	return &models.Classification{
		IssueCategory:        policy.Category,
		IssueDetails:         fmt.Sprintf("AI-detected: %s", label),
		Priority:             policy.Priority,
		Department:           policy.Department,
		ComplaintDescription: description,
		Confidence:           &confidence,
	}, nil
}

func extensionForMIME(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
