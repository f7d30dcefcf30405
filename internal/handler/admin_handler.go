package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/railmadad/complaint-api/internal/middleware"
	"github.com/railmadad/complaint-api/internal/models"
	"github.com/railmadad/complaint-api/internal/service"
	appErrors "github.com/railmadad/complaint-api/pkg/errors"
	"github.com/railmadad/complaint-api/pkg/response"
)

type adminQueries interface {
	ListAdmin(ctx context.Context, actor *models.JWTClaims, filter models.ComplaintFilter) ([]models.Complaint, int, error)
	MapPoints(ctx context.Context, actor *models.JWTClaims, limit int) ([]models.MapPoint, error)
	Insights(ctx context.Context, actor *models.JWTClaims) (*models.Insights, bool, error)
}

type workflowService interface {
	SetStatus(ctx context.Context, actor *models.JWTClaims, complaintID string, status models.ComplaintStatus) (*models.Complaint, error)
	Assign(ctx context.Context, actor *models.JWTClaims, complaintID, department string) (*models.Complaint, error)
	History(ctx context.Context, actor *models.JWTClaims, complaintID string) ([]models.ComplaintEvent, error)
}

type exportService interface {
	Export(ctx context.Context, actor *models.JWTClaims, filter models.ComplaintFilter, format string) (*service.ExportFile, error)
}

// AdminHandler serves complaint triage endpoints for admin and department staff.
type AdminHandler struct {
	queries  adminQueries
	workflow workflowService
	exports  exportService
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(queries adminQueries, workflow workflowService, exports exportService) *AdminHandler {
	return &AdminHandler{queries: queries, workflow: workflow, exports: exports}
}

type statusPayload struct {
	Status string `json:"status" binding:"required"`
}

type assignPayload struct {
	Department string `json:"department" binding:"required"`
}

func filterFromQuery(c *gin.Context) (models.ComplaintFilter, error) {
	filter := models.ComplaintFilter{
		Station:       strings.TrimSpace(c.Query("station")),
		TrainNumber:   strings.TrimSpace(c.Query("train_number")),
		IssueCategory: strings.TrimSpace(c.Query("issue_type")),
		Status:        models.ComplaintStatus(strings.ToLower(strings.TrimSpace(c.Query("status")))),
	}
	var err error
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = queryInt(c, "offset"); err != nil {
		return filter, err
	}
	return filter, nil
}

// List godoc
// @Summary List complaints
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param station query string false "Nearest station (substring)"
// @Param train_number query string false "Train number"
// @Param issue_type query string false "Issue category"
// @Param status query string false "pending, in_progress or resolved"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/complaints [get]
func (h *AdminHandler) List(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	list, total, err := h.queries.ListAdmin(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Limit: filter.Limit, Offset: filter.Offset, TotalCount: total}
	response.JSON(c, http.StatusOK, gin.H{"complaints": list, "count": len(list)}, pagination)
}

// Map godoc
// @Summary Complaint map points
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum points"
// @Success 200 {object} response.Envelope
// @Router /admin/complaints/map [get]
func (h *AdminHandler) Map(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		response.Error(c, err)
		return
	}
	points, err := h.queries.MapPoints(c.Request.Context(), claimsFromContext(c), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"points": points}, nil)
}

// Export godoc
// @Summary Export complaints
// @Tags Admin
// @Produce text/csv,application/pdf
// @Security BearerAuth
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /admin/complaints/export [get]
func (h *AdminHandler) Export(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exports.Export(c.Request.Context(), claimsFromContext(c), filter, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// UpdateStatus godoc
// @Summary Change complaint status
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Param payload body statusPayload true "New status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/complaints/{id}/status [patch]
func (h *AdminHandler) UpdateStatus(c *gin.Context) {
	var payload statusPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "status is required"))
		return
	}
	complaint, err := h.workflow.SetStatus(c.Request.Context(), claimsFromContext(c), c.Param("id"), models.ComplaintStatus(payload.Status))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"complaint": complaint}, nil)
}

// Assign godoc
// @Summary Assign complaint to a department
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Param payload body assignPayload true "Department"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/complaints/{id}/assign [patch]
func (h *AdminHandler) Assign(c *gin.Context) {
	var payload assignPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "department is required"))
		return
	}
	complaint, err := h.workflow.Assign(c.Request.Context(), claimsFromContext(c), c.Param("id"), payload.Department)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"complaint": complaint}, nil)
}

// History godoc
// @Summary Complaint change history
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Success 200 {object} response.Envelope
// @Router /admin/complaints/{id}/history [get]
func (h *AdminHandler) History(c *gin.Context) {
	events, err := h.workflow.History(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"events": events}, nil)
}

// Insights godoc
// @Summary Complaint counts by category, status and priority
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/insights [get]
func (h *AdminHandler) Insights(c *gin.Context) {
	insights, cacheHit, err := h.queries.Insights(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, gin.H{"insights": insights}, nil, middleware.ExtractMeta(c))
}
