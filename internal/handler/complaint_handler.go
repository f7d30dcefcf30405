package handler

import (
	"context"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/railmadad/complaint-api/internal/models"
	"github.com/railmadad/complaint-api/pkg/response"
)

type complaintSubmitter interface {
	Submit(ctx context.Context, actor *models.JWTClaims, in models.ComplaintSubmission) (*models.Complaint, []models.Warning, error)
	OpenImage(ctx context.Context, complaintID, token string) (*os.File, string, error)
}

type complaintQueries interface {
	ListOwn(ctx context.Context, actor *models.JWTClaims) ([]models.Complaint, error)
	Get(ctx context.Context, actor *models.JWTClaims, complaintID string) (*models.Complaint, error)
}

// ComplaintHandler serves the rider-facing complaint endpoints.
type ComplaintHandler struct {
	complaints complaintSubmitter
	queries    complaintQueries
	maxBytes   int64
}

// NewComplaintHandler constructs the handler.
func NewComplaintHandler(complaints complaintSubmitter, queries complaintQueries, maxBytes int64) *ComplaintHandler {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &ComplaintHandler{complaints: complaints, queries: queries, maxBytes: maxBytes}
}

// Submit godoc
// @Summary Submit a complaint
// @Description Classifies the photo and stores the complaint. Location and ticket failures are reported as warnings. Without a token the complaint is owned by the guest account.
// @Tags Complaints
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param image formData file true "Issue photo"
// @Param text formData string false "Rider description"
// @Param latitude formData number false "Latitude"
// @Param longitude formData number false "Longitude"
// @Param accuracy formData number false "GPS accuracy in meters"
// @Param train_details formData string false "Train details JSON"
// @Param ticket formData file false "Ticket image"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /complaint/submit [post]
func (h *ComplaintHandler) Submit(c *gin.Context) {
	limitBody(c, h.maxBytes, 2)
	image, err := readFormFile(c, h.maxBytes, "image")
	if err != nil {
		response.Error(c, err)
		return
	}
	ticket, err := readFormFile(c, h.maxBytes, "ticket")
	if err != nil {
		response.Error(c, err)
		return
	}

	in := models.ComplaintSubmission{
		Text:             c.PostForm("text"),
		Latitude:         firstForm(c, "latitude", "lat"),
		Longitude:        firstForm(c, "longitude", "lon"),
		AccuracyM:        firstForm(c, "accuracy", "accuracy_m"),
		TrainDetailsJSON: firstForm(c, "train_details", "trainDetails"),
	}
	if image != nil {
		in.Image, in.ImageFilename = image.Data, image.Filename
	}
	if ticket != nil {
		in.Ticket, in.TicketFilename = ticket.Data, ticket.Filename
	}

	complaint, warnings, err := h.complaints.Submit(c.Request.Context(), claimsFromContext(c), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithWarnings(c, http.StatusCreated, gin.H{"complaint": complaint}, warnings)
}

// My godoc
// @Summary List my complaints
// @Tags Complaints
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /complaint/my [get]
func (h *ComplaintHandler) My(c *gin.Context) {
	list, err := h.queries.ListOwn(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"complaints": list}, nil)
}

// Get godoc
// @Summary Get complaint
// @Tags Complaints
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /complaint/{id} [get]
func (h *ComplaintHandler) Get(c *gin.Context) {
	complaint, err := h.queries.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"complaint": complaint}, nil)
}

// Image godoc
// @Summary Download complaint photo
// @Tags Complaints
// @Produce image/jpeg,image/png,image/gif,image/webp
// @Param id path string true "Complaint ID"
// @Param token query string true "Signed image token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /complaint/{id}/image [get]
func (h *ComplaintHandler) Image(c *gin.Context) {
	f, mimeType, err := h.complaints.OpenImage(c.Request.Context(), c.Param("id"), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.DataFromReader(http.StatusOK, info.Size(), mimeType, f, nil)
}
