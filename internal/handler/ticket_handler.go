package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/railmadad/complaint-api/internal/models"
	appErrors "github.com/railmadad/complaint-api/pkg/errors"
	"github.com/railmadad/complaint-api/pkg/response"
)

type ticketService interface {
	ValidateTicketFile(filename string, size int64) (string, error)
	Extract(ctx context.Context, filename string, data []byte) (*models.TrainDetails, error)
}

// TicketHandler exposes OCR extraction of ticket photos.
type TicketHandler struct {
	service  ticketService
	maxBytes int64
}

// NewTicketHandler constructs the handler.
func NewTicketHandler(svc ticketService, maxBytes int64) *TicketHandler {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &TicketHandler{service: svc, maxBytes: maxBytes}
}

// Extract godoc
// @Summary Extract train details from a ticket
// @Tags Ticket
// @Accept multipart/form-data
// @Produce json
// @Param ticket formData file true "Ticket image or PDF"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /ticket/extract [post]
func (h *TicketHandler) Extract(c *gin.Context) {
	limitBody(c, h.maxBytes, 1)
	file, err := readFormFile(c, h.maxBytes, "ticket", "file")
	if err != nil {
		response.Error(c, err)
		return
	}
	if file == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "ticket file is required"))
		return
	}
	size := file.Size
	if n := int64(len(file.Data)); n > size {
		size = n
	}
	if _, err := h.service.ValidateTicketFile(file.Filename, size); err != nil {
		response.Error(c, err)
		return
	}

	details, err := h.service.Extract(c.Request.Context(), file.Filename, file.Data)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"trainDetails": details}, nil)
}
