package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Complaints",
		Headers: []string{"complaint_id", "description"},
		Rows: []map[string]string{
			{"complaint_id": "RM-20240101-ABC123", "description": "Toilet overflowing near coach B2"},
			{"complaint_id": "RM-20240101-XYZ789", "description": "=HYPERLINK(\"x\")"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "complaint_id,description", lines[0])
	assert.Contains(t, lines[1], "RM-20240101-ABC123")
	assert.Contains(t, lines[2], "'=HYPERLINK")
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	data := sampleDataset()
	data.Rows[0]["description"] = strings.Repeat("very long description ", 20)

	out, err := NewPDFExporter().Render(data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
