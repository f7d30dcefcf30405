package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railmadad/complaint-api/internal/models"
	appErrors "github.com/railmadad/complaint-api/pkg/errors"
)

type stubTextReader struct {
	text     string
	err      error
	mimeType string
}

func (s *stubTextReader) ReadText(ctx context.Context, data []byte, mimeType string) (string, error) {
	s.mimeType = mimeType
	return s.text, s.err
}

func TestTicketServiceExtract(t *testing.T) {
	reader := &stubTextReader{text: "12951 Rajdhani Express\nCoach: B2 Seat: 34"}
	svc := NewTicketService(reader, TicketConfig{}, nil, nil)

	details, err := svc.Extract(context.Background(), "ticket.PDF", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", reader.mimeType)
	assert.Equal(t, "12951", *details.TrainNumber)
	assert.Equal(t, "B2", *details.CoachNumber)
	assert.Equal(t, "34", *details.SeatNumber)
	assert.Equal(t, models.TrainSourceOCR, details.Source)
}

func TestTicketServiceExtractFailures(t *testing.T) {
	cases := []struct {
		name   string
		reader ticketTextReader
	}{
		{name: "engine error", reader: &stubTextReader{err: errors.New("timeout")}},
		{name: "empty text", reader: &stubTextReader{text: "  \n "}},
		{name: "nothing parsed", reader: &stubTextReader{text: "illegible"}},
		{name: "not configured", reader: nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewTicketService(tc.reader, TicketConfig{}, nil, nil)
			_, err := svc.Extract(context.Background(), "ticket.jpg", []byte("img"))
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, appErrors.ErrExtractionFailed))
		})
	}
}

func TestTicketServiceValidatesUpload(t *testing.T) {
	svc := NewTicketService(&stubTextReader{text: "12951"}, TicketConfig{MaxFileSizeBytes: 4}, nil, nil)

	_, err := svc.Extract(context.Background(), "ticket.gif", []byte("gif"))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Extract(context.Background(), "ticket.png", []byte("too large"))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Extract(context.Background(), "ticket.png", nil)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
