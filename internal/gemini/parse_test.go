package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railmadad/complaint-api/internal/models"
)

func TestParseClassificationStripsFences(t *testing.T) {
	raw := "```json\n{\"issue_category\":\"Cleanliness, Sanitation & Hygiene\",\"issue_details\":\"Dirty toilet\",\"priority\":\"medium\",\"department\":\"Housekeeping & Sanitation\",\"complaint_description\":\"The toilet is unclean.\",\"confidence\":0.87}\n```"

	got, err := ParseClassification(raw)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryCleanliness, got.IssueCategory)
	assert.Equal(t, models.PriorityMedium, got.Priority)
	assert.Equal(t, models.DepartmentHousekeeping, got.Department)
	require.NotNil(t, got.Confidence)
	assert.InDelta(t, 0.87, *got.Confidence, 0.0001)
}

func TestParseClassificationToleratesProse(t *testing.T) {
	raw := `Here is the result: {"issue_category":"Food & Vendor Issues","issue_details":"stale food","priority":"LOW","department":"","complaint_description":"Food was stale."} hope it helps`

	got, err := ParseClassification(raw)
	require.NoError(t, err)
	assert.Equal(t, models.PriorityLow, got.Priority)
	assert.Empty(t, got.Department)
	assert.Nil(t, got.Confidence)
}

func TestParseClassificationRejectsIncompleteVerdicts(t *testing.T) {
	cases := map[string]string{
		"no json":          "I cannot help with that",
		"broken json":      `{"issue_category": "Other / Miscellaneous",`,
		"missing priority": `{"issue_category":"Other / Miscellaneous","issue_details":"x","department":"y","complaint_description":"z"}`,
		"bad priority":     `{"issue_category":"Other / Miscellaneous","issue_details":"x","priority":"URGENT","department":"y","complaint_description":"z"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseClassification(raw)
			require.ErrorIs(t, err, ErrMalformedVerdict)
		})
	}
}

func TestBuildPromptListsCategoriesAndContext(t *testing.T) {
	prompt := BuildPrompt("  smell near coach S4 ")
	for _, c := range models.IssueCategories {
		assert.Contains(t, prompt, c)
	}
	assert.Contains(t, prompt, `ADDITIONAL USER CONTEXT: "smell near coach S4"`)
	assert.NotContains(t, BuildPrompt(""), "ADDITIONAL USER CONTEXT")
}
