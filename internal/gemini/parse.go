package gemini

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/railmadad/complaint-api/internal/models"
)

// ErrMalformedVerdict is returned when the model output is not a complete verdict.
var ErrMalformedVerdict = errors.New("gemini: malformed verdict")

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

type verdict struct {
	IssueCategory        *string  `json:"issue_category"`
	IssueDetails         *string  `json:"issue_details"`
	Priority             *string  `json:"priority"`
	Department           *string  `json:"department"`
	ComplaintDescription *string  `json:"complaint_description"`
	Confidence           *float64 `json:"confidence"`
}

// ParseClassification extracts the verdict JSON from raw model output. Markdown
// fences and surrounding prose are tolerated. Every field except confidence is
// required and the priority must be one of the four known levels.
func ParseClassification(raw string) (*models.Classification, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	match := jsonObject.FindString(cleaned)
	if match == "" {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedVerdict)
	}

	var v verdict
	if err := json.Unmarshal([]byte(match), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
	}

	required := map[string]*string{
		"issue_category":        v.IssueCategory,
		"issue_details":         v.IssueDetails,
		"priority":              v.Priority,
		"department":            v.Department,
		"complaint_description": v.ComplaintDescription,
	}
	for _, name := range []string{"issue_category", "issue_details", "priority", "department", "complaint_description"} {
		if required[name] == nil {
			return nil, fmt.Errorf("%w: missing field %s", ErrMalformedVerdict, name)
		}
	}

	priority, ok := models.ParsePriority(*v.Priority)
	if !ok {
		return nil, fmt.Errorf("%w: invalid priority %q", ErrMalformedVerdict, *v.Priority)
	}

	return &models.Classification{
		IssueCategory:        strings.TrimSpace(*v.IssueCategory),
		IssueDetails:         strings.TrimSpace(*v.IssueDetails),
		Priority:             priority,
		Department:           strings.TrimSpace(*v.Department),
		ComplaintDescription: strings.TrimSpace(*v.ComplaintDescription),
		Confidence:           v.Confidence,
	}, nil
}
